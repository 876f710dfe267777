// Package server provides the HTTP API for reportqa.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/reportqa/internal/config"
	"github.com/hyperjump/reportqa/internal/indexer"
	"github.com/hyperjump/reportqa/internal/keyword"
	"github.com/hyperjump/reportqa/internal/objectstore"
	"github.com/hyperjump/reportqa/internal/search"
	"github.com/hyperjump/reportqa/internal/storage"
	"go.uber.org/zap"
)

const (
	requestTimeout        = 2 * time.Minute
	defaultMaxUploadBytes = 64 << 20
)

// WatchService manages inbox directories at runtime.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the reportqa API.
type Server struct {
	engine       *search.Engine
	indexer      *indexer.Indexer
	storage      storage.Storage
	keywordIndex keyword.ReportIndex
	files        http.Handler
	config       *config.Config
	logger       *zap.Logger
	maxUpload    int64
	server       *http.Server

	watch      WatchService
	configPath string
	configMu   sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithFiles serves stored report originals under /files/.
func WithFiles(h http.Handler) Option {
	return func(s *Server) { s.files = h }
}

// WithKeywordIndex reports catalog size in /api/v1/status.
func WithKeywordIndex(k keyword.ReportIndex) Option {
	return func(s *Server) { s.keywordIndex = k }
}

// WithWatch enables the inbox directory endpoints. When configPath is set,
// directory changes are saved back to the config file.
func WithWatch(w WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// WithMaxUploadBytes caps multipart uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		engine:    engine,
		indexer:   idx,
		storage:   store,
		config:    cfg,
		logger:    logger,
		maxUpload: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Router returns the API routes with middleware applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(allowCORS)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/answer", s.handleAnswer)
		r.Post("/index-report", s.handleIndexReport)
		r.Get("/status", s.handleStatus)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.Post("/", s.handleUploadReport)
			r.Get("/search", s.handleSearchReports)
			r.Get("/{id}", s.handleGetReport)
			r.Delete("/{id}", s.handleDeleteReport)
			r.Get("/{id}/figures", s.handleFigures)
			r.Get("/{id}/data", s.handleReportData)
		})

		r.Route("/watch/directories", func(r chi.Router) {
			r.Get("/", s.handleWatchDirectoriesList)
			r.Post("/", s.handleWatchDirectoriesAdd)
			r.Delete("/", s.handleWatchDirectoriesRemove)
		})
	})

	if s.files != nil {
		r.Handle(objectstore.URLPrefix+"*", s.files)
	}
	return r
}

// allowCORS lets browser clients on other origins call the API.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			h.Set("Access-Control-Allow-Headers", "content-type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
