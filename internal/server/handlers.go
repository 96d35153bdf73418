package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/restfulblog/blog-service/internal/blog"
	"github.com/restfulblog/blog-service/internal/models"
)

const listingPath = "/blogs"

// formDateLayouts are accepted for blog[created]
var formDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func (s *Server) handleRoot(c *gin.Context) {
	c.Redirect(http.StatusFound, listingPath)
}

// handleIndex renders every post. A storage failure renders an empty listing.
func (s *Server) handleIndex(c *gin.Context) {
	posts, err := s.service.ListPosts(c.Request.Context())
	if err != nil {
		s.logger.Error("could not list posts", zap.Error(err))
		posts = []models.Post{}
	}
	c.HTML(http.StatusOK, "index", gin.H{"blogs": posts})
}

func (s *Server) handleNew(c *gin.Context) {
	c.HTML(http.StatusOK, "new", gin.H{"blog": models.Post{}})
}

// handleCreate creates a post from the blog[...] form fields. On failure the blank form is shown again.
func (s *Server) handleCreate(c *gin.Context) {
	fields, ok := bindPostFields(c)
	if !ok {
		s.logger.Info("rejected post with unreadable created date")
		c.HTML(http.StatusOK, "new", gin.H{"blog": models.Post{}})
		return
	}

	if _, err := s.service.CreatePost(c.Request.Context(), fields); err != nil {
		s.logger.Error("could not create post", zap.Error(err))
		c.HTML(http.StatusOK, "new", gin.H{"blog": models.Post{}})
		return
	}
	c.Redirect(http.StatusFound, listingPath)
}

func (s *Server) handleShow(c *gin.Context) {
	post, ok := s.lookup(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "show", gin.H{"blog": post})
}

func (s *Server) handleEdit(c *gin.Context) {
	post, ok := s.lookup(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "edit", gin.H{"blog": post})
}

// handleUpdate redirects to the post on success and to the listing on any failure
func (s *Server) handleUpdate(c *gin.Context) {
	id := c.Param("id")
	fields := bindEditableFields(c)

	updated, err := s.service.UpdatePost(c.Request.Context(), id, fields)
	if err != nil {
		s.logLookupError("could not update post", id, err)
		c.Redirect(http.StatusFound, listingPath)
		return
	}
	c.Redirect(http.StatusFound, listingPath+"/"+updated.ID)
}

// lookup loads the post named by the :id param. Any failure redirects to the listing,
// so a malformed id and an unknown id look the same to the client.
func (s *Server) lookup(c *gin.Context) (*models.Post, bool) {
	id := c.Param("id")
	post, err := s.service.GetPost(c.Request.Context(), id)
	if err != nil {
		s.logLookupError("could not load post", id, err)
		c.Redirect(http.StatusFound, listingPath)
		return nil, false
	}
	return post, true
}

func (s *Server) logLookupError(msg, id string, err error) {
	if blog.IsLookupFailure(err) {
		s.logger.Info(msg, zap.String("id", id), zap.Error(err))
		return
	}
	s.logger.Error(msg, zap.String("id", id), zap.Error(err))
}

// bindPostFields reads the creation form: the editable fields plus blog[created].
// It returns false when blog[created] is present but unreadable.
func bindPostFields(c *gin.Context) (models.PostFields, bool) {
	fields := bindEditableFields(c)

	if v, ok := c.PostFormMap("blog")["created"]; ok && v != "" {
		for _, layout := range formDateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				fields.Created = &t
				return fields, true
			}
		}
		return fields, false
	}

	return fields, true
}

// bindEditableFields reads blog[title], blog[body] and blog[image]. Other blog[...] keys are ignored.
func bindEditableFields(c *gin.Context) models.PostFields {
	form := c.PostFormMap("blog")

	var fields models.PostFields
	if v, ok := form["title"]; ok {
		fields.Title = models.String(v)
	}
	if v, ok := form["body"]; ok {
		fields.Body = models.String(v)
	}
	if v, ok := form["image"]; ok {
		fields.Image = models.String(v)
	}
	return fields
}
