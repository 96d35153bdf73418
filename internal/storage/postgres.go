package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	_ "github.com/lib/pq"

	"github.com/restfulblog/blog-service/internal/config"
	"github.com/restfulblog/blog-service/internal/models"
)

const createPostsTable = `
CREATE TABLE IF NOT EXISTS blogs (
	id      UUID PRIMARY KEY,
	title   TEXT,
	body    TEXT,
	image   TEXT,
	created TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db *sql.DB
}

// NewPostgreSQLStorage opens the connection pool and ensures the posts table exists
func NewPostgreSQLStorage(ctx context.Context, cfg config.StorageConfig) (*PostgreSQLStorage, error) {
	if cfg.PostgresURI == "" {
		return nil, errors.New("postgres uri is required")
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(initCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := db.ExecContext(initCtx, createPostsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create posts table: %w", err)
	}

	return &PostgreSQLStorage{db: db}, nil
}

// CreatePost inserts a new row under a fresh UUID
func (p *PostgreSQLStorage) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate post id: %w", err)
	}

	row := p.db.QueryRowContext(ctx,
		`INSERT INTO blogs (id, title, body, image, created) VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, title, body, image, created`,
		id.String(), nullString(post.Title), nullString(post.Body), nullString(post.Image), post.Created,
	)

	created, err := scanPost(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	return created, nil
}

// ListPosts returns all rows in insertion order
func (p *PostgreSQLStorage) ListPosts(ctx context.Context) ([]models.Post, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, title, body, image, created FROM blogs ORDER BY created, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}

// GetPostByID retrieves a specific post by ID
func (p *PostgreSQLStorage) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	id, err := canonicalUUID(id)
	if err != nil {
		return nil, err
	}

	row := p.db.QueryRowContext(ctx, `SELECT id, title, body, image, created FROM blogs WHERE id = $1`, id)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post %s: %w", id, err)
	}

	return post, nil
}

// UpdatePost sets the submitted columns and returns the updated row
func (p *PostgreSQLStorage) UpdatePost(ctx context.Context, id string, fields models.PostFields) (*models.Post, error) {
	if fields.Empty() {
		return p.GetPostByID(ctx, id)
	}

	id, err := canonicalUUID(id)
	if err != nil {
		return nil, err
	}

	query, args := postgresUpdateQuery(id, fields)

	post, err := scanPost(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post %s: %w", id, err)
	}

	return post, nil
}

// postgresUpdateQuery returns an empty query when no field was submitted
func postgresUpdateQuery(id string, fields models.PostFields) (string, []interface{}) {
	var sets []string
	var args []interface{}

	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, nullString(*value))
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("title", fields.Title)
	add("body", fields.Body)
	add("image", fields.Image)

	if len(sets) == 0 {
		return "", nil
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE blogs SET %s WHERE id = $%d RETURNING id, title, body, image, created",
		strings.Join(sets, ", "), len(args),
	)
	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		post               models.Post
		title, body, image sql.NullString
		created            time.Time
	)
	if err := row.Scan(&post.ID, &title, &body, &image, &created); err != nil {
		return nil, err
	}
	post.Title = title.String
	post.Body = body.String
	post.Image = image.String
	post.Created = created
	return &post, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close closes the connection pool
func (p *PostgreSQLStorage) Close() error {
	return p.db.Close()
}
