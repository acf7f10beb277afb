package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/crisis-news-scanner/internal/adapter/fetch"
	"github.com/couchcryptid/crisis-news-scanner/internal/domain"
	"github.com/couchcryptid/crisis-news-scanner/internal/pipeline"
	"github.com/couchcryptid/crisis-news-scanner/internal/summary"
)

const (
	defaultFeedLimit = 100
	maxFeedLimit     = 1000
)

// EventQuerier is the read side of the event store.
type EventQuerier interface {
	Get(id string) (domain.NewsEvent, bool)
	Recent(limit int) []domain.NewsEvent
	AllWithLocation() []domain.NewsEvent
	Len() int
}

// SourceMonitor exposes the fetch state of each source.
type SourceMonitor interface {
	Statuses() []fetch.Status
}

// CycleReporter exposes the outcome of the most recent cycle.
type CycleReporter interface {
	LastReport() (pipeline.Report, bool)
}

// API bundles the read models served under /api/v1.
type API struct {
	Events    EventQuerier
	Sources   []domain.Source
	Monitor   SourceMonitor
	Cycles    CycleReporter
	Readiness sharedobs.ReadinessChecker
}

// Server exposes the event API plus health, readiness and metrics endpoints.
type Server struct {
	httpServer *http.Server
	api        API
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, api API, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		api:    api,
		logger: logger,
	}

	r.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	r.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(api.Readiness)))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/events", s.listEvents)
		v1.GET("/events/map", s.mapEvents)
		v1.GET("/events/:id", s.getEvent)
		v1.GET("/sources", s.listSources)
		v1.GET("/summary", s.getSummary)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) listEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultFeedLimit)))
	if err != nil || limit <= 0 {
		limit = defaultFeedLimit
	}
	limit = min(limit, maxFeedLimit)

	events := s.api.Events.Recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"events": nonNil(events),
		"count":  len(events),
		"total":  s.api.Events.Len(),
	})
}

func (s *Server) mapEvents(c *gin.Context) {
	events := s.api.Events.AllWithLocation()
	c.JSON(http.StatusOK, gin.H{
		"events": nonNil(events),
		"count":  len(events),
	})
}

func (s *Server) getEvent(c *gin.Context) {
	ev, ok := s.api.Events.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, ev)
}

// sourceView joins a registry entry with its live fetch state.
type sourceView struct {
	domain.Source
	Status    *fetch.Status          `json:"status,omitempty"`
	LastCycle *pipeline.SourceReport `json:"last_cycle,omitempty"`
}

func (s *Server) listSources(c *gin.Context) {
	statuses := make(map[string]fetch.Status)
	if s.api.Monitor != nil {
		for _, st := range s.api.Monitor.Statuses() {
			statuses[st.SourceID] = st
		}
	}

	reports := make(map[string]pipeline.SourceReport)
	var lastCycle *time.Time
	if s.api.Cycles != nil {
		if r, ok := s.api.Cycles.LastReport(); ok {
			for _, sr := range r.Sources {
				reports[sr.SourceID] = sr
			}
			lastCycle = &r.StartedAt
		}
	}

	views := make([]sourceView, 0, len(s.api.Sources))
	for _, src := range s.api.Sources {
		v := sourceView{Source: src}
		if st, ok := statuses[src.ID]; ok {
			v.Status = &st
		}
		if sr, ok := reports[src.ID]; ok {
			v.LastCycle = &sr
		}
		views = append(views, v)
	}

	c.JSON(http.StatusOK, gin.H{
		"sources":    views,
		"last_cycle": lastCycle,
	})
}

func (s *Server) getSummary(c *gin.Context) {
	c.JSON(http.StatusOK, summary.Generate(s.api.Events.Recent(0)))
}

// requestLogger logs each request through slog at debug level.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func nonNil(events []domain.NewsEvent) []domain.NewsEvent {
	if events == nil {
		return []domain.NewsEvent{}
	}
	return events
}
