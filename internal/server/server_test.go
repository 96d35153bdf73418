package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/restfulblog/blog-service/internal/blog"
	"github.com/restfulblog/blog-service/internal/config"
	"github.com/restfulblog/blog-service/internal/models"
	"github.com/restfulblog/blog-service/internal/storage"
	"github.com/restfulblog/blog-service/internal/storage/storagetest"
)

func newTestServer(t *testing.T, cfg config.ServerConfig) (http.Handler, *storagetest.MockStorage) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := new(storagetest.MockStorage)
	service := blog.NewService(store, nil, zap.NewNop())
	return NewServer(cfg, service, zap.NewNop()).Handler(), store
}

func do(h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Root(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})

	rec := do(h, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/blogs", rec.Header().Get("Location"))
}

func TestServer_Health(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})

	rec := do(h, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_Index_Empty(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	store.On("ListPosts", mock.Anything).Return([]models.Post{}, nil)

	rec := do(h, http.MethodGet, "/blogs", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No posts yet.")
}

func TestServer_Index_StorageErrorRendersEmptyListing(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	store.On("ListPosts", mock.Anything).Return(nil, assert.AnError)

	rec := do(h, http.MethodGet, "/blogs", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No posts yet.")
}

func TestServer_Index_ListsPosts(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	store.On("ListPosts", mock.Anything).Return([]models.Post{
		{ID: "p1", Title: "First <post>", Body: strings.Repeat("a", 150), Created: time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "p2", Title: "Second", Image: "https://example.com/cat.png"},
	}, nil)

	rec := do(h, http.MethodGet, "/blogs", nil)
	body := rec.Body.String()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `href="/blogs/p1"`)
	assert.Contains(t, body, "First &lt;post&gt;")
	assert.Contains(t, body, strings.Repeat("a", 100)+"...")
	assert.NotContains(t, body, strings.Repeat("a", 101))
	assert.Contains(t, body, "Tue Sep 01 2020")
	assert.Contains(t, body, `src="https://example.com/cat.png"`)
	assert.NotContains(t, body, "No posts yet.")
}

func TestServer_New(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})

	rec := do(h, http.MethodGet, "/blogs/new", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="blog[title]"`)
	assert.Contains(t, rec.Body.String(), `action="/blogs"`)
}

func TestServer_Create(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	start := time.Now().UTC()
	store.On("CreatePost", mock.Anything, mock.MatchedBy(func(p models.Post) bool {
		return p.Title == "T" && p.Body == "B" && p.Image == "" &&
			!p.Created.Before(start.Add(-time.Second)) && p.Created.Before(start.Add(time.Second))
	})).Return(&models.Post{ID: "p1", Title: "T", Body: "B"}, nil).Once()

	rec := do(h, http.MethodPost, "/blogs", url.Values{"blog[title]": {"T"}, "blog[body]": {"B"}})

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/blogs", rec.Header().Get("Location"))
	store.AssertExpectations(t)
}

func TestServer_Create_WithoutTitle(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	store.On("CreatePost", mock.Anything, mock.MatchedBy(func(p models.Post) bool {
		return p.Title == "" && p.Body == "B"
	})).Return(&models.Post{ID: "p1", Body: "B"}, nil).Once()

	rec := do(h, http.MethodPost, "/blogs", url.Values{"blog[body]": {"B"}})

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/blogs", rec.Header().Get("Location"))
	store.AssertExpectations(t)
}

func TestServer_Create_WithCreatedDate(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	want := time.Date(2019, 5, 4, 0, 0, 0, 0, time.UTC)
	store.On("CreatePost", mock.Anything, mock.MatchedBy(func(p models.Post) bool {
		return p.Created.Equal(want)
	})).Return(&models.Post{ID: "p1"}, nil).Once()

	rec := do(h, http.MethodPost, "/blogs", url.Values{"blog[title]": {"T"}, "blog[created]": {"2019-05-04"}})

	assert.Equal(t, http.StatusFound, rec.Code)
	store.AssertExpectations(t)
}

func TestServer_Create_BadCreatedDateRerendersForm(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})

	rec := do(h, http.MethodPost, "/blogs", url.Values{"blog[title]": {"T"}, "blog[created]": {"yesterday"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="blog[title]"`)
	store.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything)
}

func TestServer_Create_StorageErrorRerendersBlankForm(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	store.On("CreatePost", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	rec := do(h, http.MethodPost, "/blogs", url.Values{"blog[title]": {"Lost title"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="blog[title]"`)
	assert.NotContains(t, rec.Body.String(), "Lost title")
}

func TestServer_Show(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	store.On("GetPostByID", mock.Anything, "p1").Return(&models.Post{ID: "p1", Title: "T", Body: "B"}, nil)

	rec := do(h, http.MethodGet, "/blogs/p1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<p>B</p>")
	assert.Contains(t, rec.Body.String(), `href="/blogs/p1/edit"`)
}

func TestServer_Show_LookupFailuresLookTheSame(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	store.On("GetPostByID", mock.Anything, "not-an-id").Return(nil, fmt.Errorf("%w: not-an-id", storage.ErrInvalidID))
	store.On("GetPostByID", mock.Anything, "5f4e3d2c1b0a998877665544").Return(nil, fmt.Errorf("%w: 5f4e3d2c1b0a998877665544", storage.ErrNotFound))

	malformed := do(h, http.MethodGet, "/blogs/not-an-id", nil)
	missing := do(h, http.MethodGet, "/blogs/5f4e3d2c1b0a998877665544", nil)

	assert.Equal(t, http.StatusFound, malformed.Code)
	assert.Equal(t, malformed.Code, missing.Code)
	assert.Equal(t, "/blogs", malformed.Header().Get("Location"))
	assert.Equal(t, malformed.Header().Get("Location"), missing.Header().Get("Location"))
	assert.Equal(t, malformed.Body.String(), missing.Body.String())
}

func TestServer_Edit(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	store.On("GetPostByID", mock.Anything, "p1").Return(&models.Post{ID: "p1", Title: "Old title", Image: "a.png"}, nil)

	rec := do(h, http.MethodGet, "/blogs/p1/edit", nil)
	body := rec.Body.String()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `action="/blogs/p1?_method=PUT"`)
	assert.Contains(t, body, `value="Old title"`)
	assert.Contains(t, body, `value="a.png"`)
}

func TestServer_Edit_UnknownPostRedirects(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	store.On("GetPostByID", mock.Anything, "gone").Return(nil, storage.ErrNotFound)

	rec := do(h, http.MethodGet, "/blogs/gone/edit", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/blogs", rec.Header().Get("Location"))
}

func TestServer_Update(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	fields := models.PostFields{Title: models.String("T2")}
	store.On("UpdatePost", mock.Anything, "p1", fields).Return(&models.Post{ID: "p1", Title: "T2"}, nil).Once()

	rec := do(h, http.MethodPut, "/blogs/p1", url.Values{"blog[title]": {"T2"}})

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/blogs/p1", rec.Header().Get("Location"))
	store.AssertExpectations(t)
}

func TestServer_Update_MethodOverride(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	fields := models.PostFields{Title: models.String("T2"), Body: models.String("B2"), Image: models.String("")}
	store.On("UpdatePost", mock.Anything, "p1", fields).Return(&models.Post{ID: "p1"}, nil).Twice()

	viaQuery := do(h, http.MethodPost, "/blogs/p1?_method=PUT",
		url.Values{"blog[title]": {"T2"}, "blog[body]": {"B2"}, "blog[image]": {""}})
	viaForm := do(h, http.MethodPost, "/blogs/p1",
		url.Values{"_method": {"put"}, "blog[title]": {"T2"}, "blog[body]": {"B2"}, "blog[image]": {""}})

	assert.Equal(t, http.StatusFound, viaQuery.Code)
	assert.Equal(t, "/blogs/p1", viaQuery.Header().Get("Location"))
	assert.Equal(t, http.StatusFound, viaForm.Code)
	assert.Equal(t, "/blogs/p1", viaForm.Header().Get("Location"))
	store.AssertExpectations(t)
}

func TestServer_Update_IgnoresCreated(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	fields := models.PostFields{Title: models.String("T2")}
	store.On("UpdatePost", mock.Anything, "p1", fields).Return(&models.Post{ID: "p1", Title: "T2"}, nil).Twice()

	unreadable := do(h, http.MethodPut, "/blogs/p1", url.Values{"blog[title]": {"T2"}, "blog[created]": {"yesterday"}})
	readable := do(h, http.MethodPut, "/blogs/p1", url.Values{"blog[title]": {"T2"}, "blog[created]": {"2019-05-04"}})

	assert.Equal(t, http.StatusFound, unreadable.Code)
	assert.Equal(t, "/blogs/p1", unreadable.Header().Get("Location"))
	assert.Equal(t, http.StatusFound, readable.Code)
	assert.Equal(t, "/blogs/p1", readable.Header().Get("Location"))
	store.AssertExpectations(t)
}

func TestServer_ListenerUsesMethodOverride(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := new(storagetest.MockStorage)
	srv := NewServer(config.ServerConfig{}, blog.NewService(store, nil, zap.NewNop()), zap.NewNop())
	fields := models.PostFields{Title: models.String("T2")}
	store.On("UpdatePost", mock.Anything, "p1", fields).Return(&models.Post{ID: "p1"}, nil).Twice()

	for _, h := range []http.Handler{srv.server.Handler, srv.Handler()} {
		rec := do(h, http.MethodPost, "/blogs/p1?_method=PUT", url.Values{"blog[title]": {"T2"}})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/blogs/p1", rec.Header().Get("Location"))
	}
	store.AssertExpectations(t)
}

func TestServer_Update_FailureRedirectsToListing(t *testing.T) {
	h, store := newTestServer(t, config.ServerConfig{})
	store.On("UpdatePost", mock.Anything, "p1", mock.Anything).Return(nil, assert.AnError)
	store.On("UpdatePost", mock.Anything, "gone", mock.Anything).Return(nil, storage.ErrNotFound)

	broken := do(h, http.MethodPut, "/blogs/p1", url.Values{"blog[title]": {"T2"}})
	missing := do(h, http.MethodPut, "/blogs/gone", url.Values{"blog[title]": {"T2"}})

	assert.Equal(t, http.StatusFound, broken.Code)
	assert.Equal(t, "/blogs", broken.Header().Get("Location"))
	assert.Equal(t, http.StatusFound, missing.Code)
	assert.Equal(t, "/blogs", missing.Header().Get("Location"))
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "stylesheets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stylesheets", "app.css"), []byte("body{}"), 0o644))

	h, _ := newTestServer(t, config.ServerConfig{StaticDir: dir})

	rec := do(h, http.MethodGet, "/public/stylesheets/app.css", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())
}

func TestServer_StaticDirMissingIsIgnored(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{StaticDir: filepath.Join(t.TempDir(), "nope")})

	rec := do(h, http.MethodGet, "/public/app.css", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
