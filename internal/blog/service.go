package blog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/restfulblog/blog-service/internal/events"
	"github.com/restfulblog/blog-service/internal/models"
	"github.com/restfulblog/blog-service/internal/storage"
)

// Service handles blog post operations on top of a storage backend
type Service struct {
	storage   storage.Storage
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new blog service
func NewService(store storage.Storage, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		storage:   store,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IsLookupFailure reports whether err means the requested post could not be
// resolved, either because the id is malformed or because nothing has that id.
func IsLookupFailure(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID)
}

// ListPosts returns every post in storage order. An empty store yields an empty, non-nil slice.
func (s *Service) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts, err := s.storage.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// CreatePost stores a new post built from the submitted fields.
// Created defaults to the current time unless the fields carry one.
func (s *Service) CreatePost(ctx context.Context, fields models.PostFields) (*models.Post, error) {
	post := models.Post{Created: s.now()}
	if fields.Created != nil {
		post.Created = fields.Created.UTC()
	}
	fields.Apply(&post)

	created, err := s.storage.CreatePost(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	s.logger.Info("post created", zap.String("id", created.ID))
	if err := s.publisher.PostCreated(*created); err != nil {
		s.logger.Warn("could not publish post created event", zap.String("id", created.ID), zap.Error(err))
	}

	return created, nil
}

// GetPost fetches one post by id
func (s *Service) GetPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.storage.GetPostByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// UpdatePost sets the submitted title, body and image on the post.
// Fields that were not submitted are kept and created never changes.
func (s *Service) UpdatePost(ctx context.Context, id string, fields models.PostFields) (*models.Post, error) {
	fields.Created = nil

	updated, err := s.storage.UpdatePost(ctx, id, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	s.logger.Info("post updated", zap.String("id", updated.ID))
	if err := s.publisher.PostUpdated(*updated); err != nil {
		s.logger.Warn("could not publish post updated event", zap.String("id", updated.ID), zap.Error(err))
	}

	return updated, nil
}

// SamplePost is inserted by SeedSamplePost
var SamplePost = models.PostFields{
	Title: models.String("Test Blog"),
	Image: models.String("https://images.unsplash.com/photo-1598769569852-a8b8f6cfc613?auto=format&fit=crop&w=1352&q=80"),
	Body:  models.String("Hello this is a blog post"),
}

// SeedSamplePost inserts SamplePost when the store holds no posts.
// It reports whether a post was inserted.
func (s *Service) SeedSamplePost(ctx context.Context) (bool, error) {
	posts, err := s.ListPosts(ctx)
	if err != nil {
		return false, err
	}
	if len(posts) > 0 {
		return false, nil
	}

	if _, err := s.CreatePost(ctx, SamplePost); err != nil {
		return false, err
	}
	return true, nil
}
