package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/restfulblog/blog-service/internal/config"
	"github.com/restfulblog/blog-service/internal/models"
)

var (
	// ErrNotFound is returned when no post has the requested id
	ErrNotFound = errors.New("post not found")
	// ErrInvalidID is returned when the id is not well-formed for the backend
	ErrInvalidID = errors.New("invalid post id")
)

// Storage interface defines the contract for post persistence
type Storage interface {
	// CreatePost inserts post and returns it with the id assigned by the backend.
	CreatePost(ctx context.Context, post models.Post) (*models.Post, error)
	// ListPosts returns every post in backend order.
	ListPosts(ctx context.Context) ([]models.Post, error)
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	// UpdatePost sets the submitted fields and returns the stored result.
	UpdatePost(ctx context.Context, id string, fields models.PostFields) (*models.Post, error)
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	var (
		store Storage
		err   error
	)

	// Assign through typed locals so a failed constructor yields a nil interface.
	switch cfg.Type {
	case "mongodb":
		var s *MongoDBStorage
		s, err = NewMongoDBStorage(ctx, cfg)
		store = s
	case "dynamodb":
		var s *DynamoDBStorage
		s, err = NewDynamoDBStorage(cfg)
		store = s
	case "postgresql":
		var s *PostgreSQLStorage
		s, err = NewPostgreSQLStorage(ctx, cfg)
		store = s
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	if err != nil {
		return nil, err
	}
	return store, nil
}

// canonicalUUID parses any form uuid.FromString accepts (upper case, braces,
// urn:uuid:) and returns the lower-case hyphenated form the backends store.
func canonicalUUID(id string) (string, error) {
	parsed, err := uuid.FromString(id)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	return parsed.String(), nil
}
