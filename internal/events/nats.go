package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/restfulblog/blog-service/internal/models"
)

// Publisher announces post changes to interested consumers
type Publisher interface {
	PostCreated(post models.Post) error
	PostUpdated(post models.Post) error
	Close() error
}

// closeTimeout bounds how long Close waits for buffered events to reach the server
const closeTimeout = 5 * time.Second

// PostEvent is the JSON payload published for every post change
type PostEvent struct {
	PostID    string `json:"post_id"`
	Title     string `json:"title,omitempty"`
	Image     string `json:"image,omitempty"`
	Created   string `json:"created"`
	Timestamp string `json:"timestamp"`
}

func newPostEvent(post models.Post, now time.Time) PostEvent {
	return PostEvent{
		PostID:    post.ID,
		Title:     post.Title,
		Image:     post.Image,
		Created:   post.Created.UTC().Format(time.RFC3339),
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// NATSPublisher publishes post events on <prefix>.created and <prefix>.updated
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to the NATS server at url
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("restful-blog"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// PostCreated publishes a created event
func (p *NATSPublisher) PostCreated(post models.Post) error {
	return p.publish("created", post)
}

// PostUpdated publishes an updated event
func (p *NATSPublisher) PostUpdated(post models.Post) error {
	return p.publish("updated", post)
}

func (p *NATSPublisher) publish(kind string, post models.Post) error {
	data, err := json.Marshal(newPostEvent(post, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", kind, err)
	}
	return p.conn.Publish(Subject(p.prefix, kind), data)
}

// Close flushes buffered events, waiting up to closeTimeout, and closes the connection
func (p *NATSPublisher) Close() error {
	return closeConn(p.conn, closeTimeout)
}

type flushCloser interface {
	FlushTimeout(timeout time.Duration) error
	Close()
}

// closeConn always closes conn and reports a flush that did not complete in time
func closeConn(conn flushCloser, timeout time.Duration) error {
	err := conn.FlushTimeout(timeout)
	conn.Close()
	if err != nil {
		return fmt.Errorf("failed to flush NATS events: %w", err)
	}
	return nil
}

// Subject returns the NATS subject for an event kind
func Subject(prefix, kind string) string {
	return prefix + "." + kind
}

// NopPublisher discards events. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) PostCreated(models.Post) error { return nil }
func (NopPublisher) PostUpdated(models.Post) error { return nil }
func (NopPublisher) Close() error                  { return nil }
