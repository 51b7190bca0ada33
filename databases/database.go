package databases

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/member-portal/config"
)

// DatabaseHelper hands out collections of the portal database
type DatabaseHelper interface {
	Collection(name string) CollectionHelper
	Client() ClientHelper
}

// CollectionHelper is the subset of collection operations the portal uses
type CollectionHelper interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) SingleResultHelper
	Find(context.Context, interface{}, ...*options.FindOptions) (CursorHelper, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (interface{}, error)
	CreateIndex(ctx context.Context, keys bson.D, unique bool) (string, error)
}

// SingleResultHelper decodes a FindOne result
type SingleResultHelper interface {
	Decode(v interface{}) error
}

// CursorHelper drains a cursor into a slice
type CursorHelper interface {
	All(ctx context.Context, results interface{}) error
	Close(ctx context.Context) error
}

// ClientHelper is the mongo client as seen by App.Initialize
type ClientHelper interface {
	Database(string) DatabaseHelper
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

type mongoClient struct {
	cl *mongo.Client
}

type mongoDatabase struct {
	db *mongo.Database
}

type mongoCollection struct {
	coll *mongo.Collection
}

// NewClient builds an unconnected client for the configured DB_URI
func NewClient(conf *config.Config) (ClientHelper, error) {
	c, err := mongo.NewClient(options.Client().ApplyURI(conf.URL))
	return &mongoClient{cl: c}, err
}

// NewDatabase selects the configured DB_NAME on client
func NewDatabase(conf *config.Config, client ClientHelper) DatabaseHelper {
	return client.Database(conf.DatabaseName)
}

// EnsureIndexes creates the indexes behind find_id (email), the department
// member list (team) and the newest-first post list (createdAt)
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	indexes := []struct {
		collection string
		keys       bson.D
		unique     bool
	}{
		{userName, bson.D{{Key: "email", Value: 1}}, false},
		{userName, bson.D{{Key: "team", Value: 1}}, false},
		{postName, bson.D{{Key: "createdAt", Value: -1}}, false},
	}
	for _, idx := range indexes {
		if _, err := db.Collection(idx.collection).CreateIndex(ctx, idx.keys, idx.unique); err != nil {
			return fmt.Errorf("creating index on %s: %w", idx.collection, err)
		}
	}
	return nil
}

func (mc *mongoClient) Database(dbName string) DatabaseHelper {
	return &mongoDatabase{db: mc.cl.Database(dbName)}
}

func (mc *mongoClient) Connect(ctx context.Context) error {
	return mc.cl.Connect(ctx)
}

func (mc *mongoClient) Disconnect(ctx context.Context) error {
	return mc.cl.Disconnect(ctx)
}

func (md *mongoDatabase) Collection(colName string) CollectionHelper {
	return &mongoCollection{coll: md.db.Collection(colName)}
}

func (md *mongoDatabase) Client() ClientHelper {
	return &mongoClient{cl: md.db.Client()}
}

func (mc *mongoCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) SingleResultHelper {
	// *mongo.SingleResult already has Decode
	return mc.coll.FindOne(ctx, filter, opts...)
}

func (mc *mongoCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (interface{}, error) {
	res, err := mc.coll.InsertOne(ctx, document, opts...)
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

func (mc *mongoCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (CursorHelper, error) {
	cursor, err := mc.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (mc *mongoCollection) CreateIndex(ctx context.Context, keys bson.D, unique bool) (string, error) {
	return mc.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(unique),
	})
}
