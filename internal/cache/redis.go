package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/restfulblog/blog-service/internal/config"
	"github.com/restfulblog/blog-service/internal/models"
	"github.com/restfulblog/blog-service/internal/storage"
)

const (
	postsKey      = "blog:posts"
	postKeyPrefix = "blog:post:"

	// defaultRedeleteDelay is how long after a write its keys are deleted a
	// second time, clearing values a concurrent read fetched before the write.
	defaultRedeleteDelay = 500 * time.Millisecond
	redeleteTimeout      = 2 * time.Second
)

// Store is a read-through Redis cache in front of another storage.Storage.
// Redis failures are logged and the call falls through to the backend.
//
// Posts are cached under the id the backend returns, never under the id the
// caller asked for, so aliases of one id share a single entry.
type Store struct {
	next   storage.Storage
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	redeleteDelay time.Duration
	pending       sync.WaitGroup
}

var _ storage.Storage = (*Store)(nil)

// NewRedisClient connects to Redis and verifies the connection with PING
func NewRedisClient(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// NewStore wraps next with a cache held in client
func NewStore(next storage.Storage, client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,

		redeleteDelay: defaultRedeleteDelay,
	}
}

func postKey(id string) string {
	return postKeyPrefix + id
}

// CreatePost stores through and drops the cached listing
func (s *Store) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	created, err := s.next.CreatePost(ctx, post)
	if err != nil {
		return nil, err
	}
	s.invalidateTwice(ctx, postsKey)
	return created, nil
}

// ListPosts serves the full listing from cache when present
func (s *Store) ListPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if s.get(ctx, postsKey, &posts) {
		return posts, nil
	}

	posts, err := s.next.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	s.set(ctx, postsKey, posts)
	return posts, nil
}

// GetPostByID serves a single post from cache when present
func (s *Store) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if s.get(ctx, postKey(id), &post) {
		return &post, nil
	}

	found, err := s.next.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, postKey(found.ID), found)
	return found, nil
}

// UpdatePost stores through and drops both the post and the listing
func (s *Store) UpdatePost(ctx context.Context, id string, fields models.PostFields) (*models.Post, error) {
	updated, err := s.next.UpdatePost(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	keys := []string{postKey(updated.ID), postsKey}
	if updated.ID != id {
		keys = append(keys, postKey(id))
	}
	s.invalidateTwice(ctx, keys...)
	return updated, nil
}

// Close waits for scheduled deletes, then closes the Redis client and the wrapped storage
func (s *Store) Close() error {
	s.pending.Wait()
	return errors.Join(s.client.Close(), s.next.Close())
}

func (s *Store) get(ctx context.Context, key string, dst interface{}) bool {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidateTwice deletes keys now and again after redeleteDelay. A reader that
// loaded the old value before the write and stores it after the first delete
// leaves a stale entry for at most redeleteDelay, unless that read took longer.
func (s *Store) invalidateTwice(ctx context.Context, keys ...string) {
	s.invalidate(ctx, keys...)

	s.pending.Add(1)
	time.AfterFunc(s.redeleteDelay, func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), redeleteTimeout)
		defer cancel()
		s.invalidate(ctx, keys...)
	})
}

func (s *Store) invalidate(ctx context.Context, keys ...string) {
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
