// Package httpapi exposes the read-side JSON API and the protected manual
// trigger. It is thin plumbing over the store and the pipeline.
package httpapi

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"worldsentinel/internal/config"
	"worldsentinel/internal/ports"
	"worldsentinel/internal/usecase"
)

const homePage = `<!doctype html><meta charset="utf-8"><title>World Sentinel</title>
<h1>World Sentinel</h1>
<ul>
  <li>Ping: <code>/api/health</code></li>
  <li>Last run: <code>/api/last-run</code></li>
  <li>News: <code>/api/news?limit=50&sector=energie&region=eu</code></li>
  <li>Indices: <code>/api/indices</code></li>
  <li>Signals: <code>/api/signals</code></li>
  <li>Sources: <code>/api/sources</code></li>
  <li>Manual run (protected): <code>/admin/run?key=YOUR_KEY</code></li>
</ul>`

// Server holds the handlers' collaborators.
type Server struct {
	store    ports.Store
	pipeline *usecase.Pipeline
	sources  []config.SourceConfig
	adminKey string
	logger   *slog.Logger
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// New builds the HTTP surface.
func New(store ports.Store, pipeline *usecase.Pipeline, cfg config.Config, logger *slog.Logger) *Server {
	return &Server{
		store:    store,
		pipeline: pipeline,
		sources:  cfg.Sources,
		adminKey: cfg.Server.AdminKey,
		logger:   logger,
	}
}

// Router assembles the gin engine. Recovery keeps handler panics from
// terminating the serving process.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.home)

	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/last-run", s.lastRun)
		api.GET("/sources", s.listSources)
		api.GET("/news", s.listNews)
		api.GET("/indices", s.listIndices)
		api.GET("/signals", s.listSignals)
	}

	r.GET("/admin/run", s.adminRun)

	return r
}

func (s *Server) home(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(homePage))
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": nowISO()})
}

func (s *Server) lastRun(c *gin.Context) {
	value, err := s.store.GetMeta(c.Request.Context(), "last_run")
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if value == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true, "last_run": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "last_run": value})
}

func (s *Server) listSources(c *gin.Context) {
	type sourceView struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	out := make([]sourceView, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, sourceView{Name: src.Name, URL: src.URL})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listNews(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := s.store.ListNews(c.Request.Context(), ports.NewsFilter{
		Sector: c.Query("sector"),
		Region: c.Query("region"),
		Limit:  limit,
	})
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) listIndices(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))

	scores, err := s.store.ListIndexScores(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, scores)
}

func (s *Server) listSignals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	sigs, err := s.store.ListSignals(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, sigs)
}

// adminRun triggers one full pipeline run. A missing server credential is a
// misconfiguration, reported distinctly from an invalid caller credential and
// without leaking whether anything matches.
func (s *Server) adminRun(c *gin.Context) {
	if s.adminKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "admin key not configured"})
		return
	}

	key := c.Query("key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
		return
	}

	inserted, err := s.pipeline.Run(c.Request.Context())
	if errors.Is(err, usecase.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "inserted": inserted})
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if s.logger != nil {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}
