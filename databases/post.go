package databases

// go generate: mockery --name PostDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/member-portal/models"
)

const postName = "posts"

// PostDatabase contains the methods to use with the post database
type PostDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Post, error)
	InsertOne(ctx context.Context, post models.Post) (interface{}, error)
}

type postDatabase struct {
	db DatabaseHelper
}

// NewPostDatabase initializes a new instance of post database with the provided db connection
func NewPostDatabase(db DatabaseHelper) PostDatabase {
	return &postDatabase{
		db: db,
	}
}

func (p *postDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Post, error) {
	var posts []models.Post
	cur, err := p.db.Collection(postName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err = cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (p *postDatabase) InsertOne(ctx context.Context, post models.Post) (interface{}, error) {
	return p.db.Collection(postName).InsertOne(ctx, post)
}

// VisiblePostsFilter selects public posts and the viewer's own private posts.
// Admins see everything.
func VisiblePostsFilter(viewerID string, admin bool) bson.M {
	if admin {
		return bson.M{}
	}
	return bson.M{"$or": bson.A{
		bson.M{"private": false},
		bson.M{"author": viewerID},
	}}
}

// NewestFirst pages through posts ordered by creation time, newest first
func NewestFirst(limit, page int) *options.FindOptions {
	opts := newMongoPaginate(limit, page).getPaginatedOpts()
	return opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})
}
