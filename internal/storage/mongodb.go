package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/restfulblog/blog-service/internal/config"
	"github.com/restfulblog/blog-service/internal/models"
)

// MongoDBStorage implements Storage interface using MongoDB
type MongoDBStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoPost struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Title   string             `bson:"title,omitempty"`
	Body    string             `bson:"body,omitempty"`
	Image   string             `bson:"image,omitempty"`
	Created time.Time          `bson:"created"`
}

func (p mongoPost) toModel() *models.Post {
	return &models.Post{
		ID:      p.ID.Hex(),
		Title:   p.Title,
		Body:    p.Body,
		Image:   p.Image,
		Created: p.Created,
	}
}

// NewMongoDBStorage connects to MongoDB and returns a storage bound to the posts collection
func NewMongoDBStorage(ctx context.Context, cfg config.StorageConfig) (*MongoDBStorage, error) {
	if cfg.MongoDBURI == "" {
		return nil, errors.New("mongodb uri is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBStorage{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// CreatePost inserts a new post document
func (m *MongoDBStorage) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	doc := mongoPost{
		Title:   post.Title,
		Body:    post.Body,
		Image:   post.Image,
		Created: post.Created,
	}

	result, err := m.collection.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	doc.ID = oid

	return doc.toModel(), nil
}

// ListPosts returns all posts in natural order
func (m *MongoDBStorage) ListPosts(ctx context.Context) ([]models.Post, error) {
	cursor, err := m.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to find posts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoPost
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}

	posts := make([]models.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, *doc.toModel())
	}

	return posts, nil
}

// GetPostByID retrieves a specific post by its hex ObjectID
func (m *MongoDBStorage) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	var doc mongoPost
	err = m.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post %s: %w", id, err)
	}

	return doc.toModel(), nil
}

// UpdatePost sets the submitted fields on the post and returns the updated document
func (m *MongoDBStorage) UpdatePost(ctx context.Context, id string, fields models.PostFields) (*models.Post, error) {
	// MongoDB rejects an empty $set.
	if fields.Empty() {
		return m.GetPostByID(ctx, id)
	}

	set := bson.M{}
	if fields.Title != nil {
		set["title"] = *fields.Title
	}
	if fields.Body != nil {
		set["body"] = *fields.Body
	}
	if fields.Image != nil {
		set["image"] = *fields.Image
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc mongoPost
	err = m.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post %s: %w", id, err)
	}

	return doc.toModel(), nil
}

// Close disconnects the MongoDB client
func (m *MongoDBStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
