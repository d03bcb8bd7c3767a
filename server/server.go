// Package server exposes the analysis pipeline over HTTP: dataset
// upload, analysis retrieval, date filtering, segmentation, CSV export
// and WhatsApp campaigns.
package server

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/macroplay/insights/analyze"
	"github.com/macroplay/insights/correlate"
	"github.com/macroplay/insights/gemini"
	"github.com/macroplay/insights/notify"
	"github.com/macroplay/insights/segment"
	"github.com/macroplay/insights/store"
)

// Config wires the server's collaborators. Store, Gemini and Notifier
// are optional; the endpoints that need them answer 503 when absent.
type Config struct {
	Logger   *zap.Logger
	Store    *store.Store
	Gemini   *gemini.Client
	Notifier *notify.Client

	// Generator feeds the segmentation engine. Defaults to the Gemini
	// client when one is configured.
	Generator segment.TextGenerator

	// Now supplies the reference day for recency metrics.
	Now func() time.Time
}

// session is the server's working dataset. The original join is
// retained so date filters always recompute from unfiltered data.
type session struct {
	datasetID uuid.UUID
	name      string

	joined   []correlate.JoinedRecord
	records  []analyze.Annotated
	analysis *analyze.Result
	outcome  *segment.Outcome
}

// Server handles the HTTP API.
type Server struct {
	router   *gin.Engine
	log      *zap.Logger
	db       *store.Store
	gem      *gemini.Client
	notifier *notify.Client
	engine   *segment.Engine
	now      func() time.Time

	mu      sync.RWMutex
	session *session
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	gen := cfg.Generator
	if gen == nil && cfg.Gemini != nil && cfg.Gemini.Configured() {
		gen = cfg.Gemini
	}

	s := &Server{
		log:      cfg.Logger,
		db:       cfg.Store,
		gem:      cfg.Gemini,
		notifier: cfg.Notifier,
		engine:   segment.NewEngine(gen, cfg.Logger),
		now:      cfg.Now,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	{
		api.POST("/datasets", s.uploadDataset)
		api.GET("/datasets", s.listDatasets)
		api.GET("/analysis", s.getAnalysis)
		api.POST("/analysis/filter", s.filterAnalysis)
		api.POST("/segments", s.runSegmentation)
		api.GET("/export.csv", s.exportCSV)
		api.POST("/insights", s.generateInsights)
		api.POST("/notify", s.sendCampaign)
	}

	s.router = router
	return s
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() *gin.Engine {
	return s.router
}

// Run serves the API on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// currentSession returns the live session pointer plus a copy of its
// fields, both taken under the read lock. Handlers read only from the
// copy; write-backs re-acquire s.mu and check the pointer is still
// current, so results computed against a superseded upload are dropped.
func (s *Server) currentSession() (*session, session) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, session{}
	}
	return s.session, *s.session
}
