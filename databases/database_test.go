package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/member-portal/databases"
	"github.com/linesmerrill/member-portal/databases/mocks"
)

func TestEnsureIndexes(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	users := &mocks.CollectionHelper{}
	posts := &mocks.CollectionHelper{}

	users.On("CreateIndex", mock.Anything, bson.D{{Key: "email", Value: 1}}, false).Return("email_1", nil)
	users.On("CreateIndex", mock.Anything, bson.D{{Key: "team", Value: 1}}, false).Return("team_1", nil)
	posts.On("CreateIndex", mock.Anything, bson.D{{Key: "createdAt", Value: -1}}, false).Return("createdAt_-1", nil)
	db.On("Collection", "users").Return(users)
	db.On("Collection", "posts").Return(posts)

	assert.NoError(t, databases.EnsureIndexes(context.Background(), db))
	users.AssertExpectations(t)
	posts.AssertExpectations(t)
}

func TestEnsureIndexesError(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	users := &mocks.CollectionHelper{}

	users.On("CreateIndex", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("mocked-error"))
	db.On("Collection", "users").Return(users)

	err := databases.EnsureIndexes(context.Background(), db)

	assert.EqualError(t, err, "creating index on users: mocked-error")
}
