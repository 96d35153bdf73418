package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/restfulblog/blog-service/internal/config"
	"github.com/restfulblog/blog-service/internal/models"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// PostService is what the HTTP layer needs from the blog service
type PostService interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	CreatePost(ctx context.Context, fields models.PostFields) (*models.Post, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, fields models.PostFields) (*models.Post, error)
}

// Server handles HTTP requests
type Server struct {
	config  config.ServerConfig
	service PostService
	logger  *zap.Logger
	engine  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, service PostService, logger *zap.Logger) *Server {
	s := &Server{
		config:  cfg,
		service: service,
		logger:  logger,
	}

	engine := gin.New()
	engine.Use(requestLogger(logger), gin.Recovery())
	engine.SetHTMLTemplate(parseTemplates())

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			engine.Static("/public", cfg.StaticDir)
		}
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/", s.handleRoot)
	engine.GET("/blogs", s.handleIndex)
	engine.GET("/blogs/new", s.handleNew)
	engine.POST("/blogs", s.handleCreate)
	engine.GET("/blogs/:id", s.handleShow)
	engine.GET("/blogs/:id/edit", s.handleEdit)
	engine.PUT("/blogs/:id", s.handleUpdate)
	s.engine = engine

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler returns the root HTTP handler: the gin engine behind method override
func (s *Server) Handler() http.Handler {
	return methodOverride(s.engine)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func parseTemplates() *template.Template {
	funcs := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Mon Jan 02 2006")
		},
		"excerpt": func(s string, n int) string {
			runes := []rune(s)
			if len(runes) <= n {
				return s
			}
			return string(runes[:n]) + "..."
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.tmpl"))
}

// methodOverride lets HTML forms issue PUT requests with POST and _method=PUT
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			method := r.URL.Query().Get("_method")
			if method == "" {
				method = r.PostFormValue("_method")
			}
			if strings.EqualFold(method, http.MethodPut) {
				r.Method = http.MethodPut
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one log line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
