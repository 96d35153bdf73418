package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/gofrs/uuid"

	"github.com/restfulblog/blog-service/internal/config"
	"github.com/restfulblog/blog-service/internal/models"
)

// DynamoDBStorage implements Storage interface using AWS DynamoDB
type DynamoDBStorage struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

type dynamoPost struct {
	ID      string    `dynamodbav:"id"`
	Title   string    `dynamodbav:"title,omitempty"`
	Body    string    `dynamodbav:"body,omitempty"`
	Image   string    `dynamodbav:"image,omitempty"`
	Created time.Time `dynamodbav:"created"`
}

func (p dynamoPost) toModel() *models.Post {
	return &models.Post{
		ID:      p.ID,
		Title:   p.Title,
		Body:    p.Body,
		Image:   p.Image,
		Created: p.Created,
	}
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := &DynamoDBStorage{
		client:    dynamodb.New(sess),
		tableName: cfg.TableName,
	}

	// Create table if it doesn't exist (for local testing)
	if err := storage.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure table exists: %w", err)
	}

	return storage, nil
}

// ensureTable creates the DynamoDB table if it doesn't exist
func (d *DynamoDBStorage) ensureTable() error {
	_, err := d.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	if err == nil {
		return nil
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	}

	if _, err := d.client.CreateTable(input); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return d.client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
}

// CreatePost stores a new post under a fresh UUID
func (d *DynamoDBStorage) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate post id: %w", err)
	}

	doc := dynamoPost{
		ID:      id.String(),
		Title:   post.Title,
		Body:    post.Body,
		Image:   post.Image,
		Created: post.Created,
	}

	item, err := dynamodbattribute.MarshalMap(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store post %s: %w", doc.ID, err)
	}

	return doc.toModel(), nil
}

// ListPosts scans the whole table
func (d *DynamoDBStorage) ListPosts(ctx context.Context) ([]models.Post, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(d.tableName),
	}

	var docs []dynamoPost
	var unmarshalErr error
	err := d.client.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		var batch []dynamoPost
		if err := dynamodbattribute.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			unmarshalErr = err
			return false
		}
		docs = append(docs, batch...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan posts: %w", err)
	}
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal posts: %w", unmarshalErr)
	}

	posts := make([]models.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, *doc.toModel())
	}

	return posts, nil
}

// GetPostByID retrieves a specific post by ID
func (d *DynamoDBStorage) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	id, err := canonicalUUID(id)
	if err != nil {
		return nil, err
	}

	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(id)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get post %s: %w", id, err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var doc dynamoPost
	if err := dynamodbattribute.UnmarshalMap(result.Item, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post: %w", err)
	}

	return doc.toModel(), nil
}

// UpdatePost sets the submitted fields. Empty strings remove the attribute.
func (d *DynamoDBStorage) UpdatePost(ctx context.Context, id string, fields models.PostFields) (*models.Post, error) {
	if fields.Empty() {
		return d.GetPostByID(ctx, id)
	}

	id, err := canonicalUUID(id)
	if err != nil {
		return nil, err
	}

	expr, names, values := dynamoUpdateExpression(fields)

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(id)},
		},
		UpdateExpression:         aws.String(expr),
		ConditionExpression:      aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: names,
		ReturnValues:             aws.String(dynamodb.ReturnValueAllNew),
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	result, err := d.client.UpdateItemWithContext(ctx, input)
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to update post %s: %w", id, err)
	}

	var doc dynamoPost
	if err := dynamodbattribute.UnmarshalMap(result.Attributes, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post: %w", err)
	}

	return doc.toModel(), nil
}

// dynamoUpdateExpression builds the SET/REMOVE clauses for the submitted fields
func dynamoUpdateExpression(fields models.PostFields) (string, map[string]*string, map[string]*dynamodb.AttributeValue) {
	names := map[string]*string{}
	values := map[string]*dynamodb.AttributeValue{}
	var sets, removes []string

	add := func(attr string, value *string) {
		if value == nil {
			return
		}
		names["#"+attr] = aws.String(attr)
		if *value == "" {
			removes = append(removes, "#"+attr)
			return
		}
		values[":"+attr] = &dynamodb.AttributeValue{S: aws.String(*value)}
		sets = append(sets, fmt.Sprintf("#%s = :%s", attr, attr))
	}
	add("title", fields.Title)
	add("body", fields.Body)
	add("image", fields.Image)

	var clauses []string
	if len(sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(removes, ", "))
	}

	return strings.Join(clauses, " "), names, values
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}
