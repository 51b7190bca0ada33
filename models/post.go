package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post holds the structure for the posts collection in mongo
type Post struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Author    string             `json:"author" bson:"author"`
	Title     string             `json:"title" bson:"title"`
	Content   string             `json:"content" bson:"content"`
	Private   bool               `json:"private" bson:"private"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// CreatePostRequest is the body of POST /post
type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Private bool   `json:"private"`
}
