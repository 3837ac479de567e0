package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docpipe.ingest/internal/core/domain"
	"docpipe.ingest/internal/core/logger"
	"docpipe.ingest/internal/core/ports"
	"docpipe.ingest/internal/core/services"
)

const (
	// APIPrefix is where the sandbox mounts the ingestion API.
	APIPrefix = "/api/v1"

	filesField      = "files"
	maxUploadMemory = 32 << 20
)

// Server is the sandbox backend: it accepts ingestion uploads, runs them
// through the simulated pipeline and serves the per-job status stream.
type Server struct {
	router   *chi.Mux
	pipeline *services.Pipeline
	bus      ports.JobEventBus
	hub      *Hub
	metrics  bool

	// baseCtx outlives requests; jobs and streams stop when it is cancelled.
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu         sync.Mutex
	httpServer *http.Server
}

type Option func(*Server)

// WithMetrics controls whether /metrics is served. It is on by default.
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.metrics = enabled }
}

func NewServer(pipeline *services.Pipeline, bus ports.JobEventBus, hub *Hub, opts ...Option) *Server {
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		router:   chi.NewRouter(),
		pipeline: pipeline,
		bus:      bus,
		hub:      hub,
		metrics:  true,
		baseCtx:  ctx,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(MetricsMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if s.metrics {
		s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			MetricsHandler().ServeHTTP(w, r)
		})
	}
	s.router.Get("/health/live", s.handleLiveness)

	s.router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/ingest", s.handleIngest)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/ws/jobs/{id}/status", s.handleJobStream)
	})
}

// Handler is the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "sandbox")
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, closes open streams and waits for
// running jobs to stop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.stop()
	s.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Health(r.Context()))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.reject(w, r, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[filesField]
	if len(headers) == 0 {
		s.reject(w, r, http.StatusBadRequest, "no files provided")
		return
	}

	uploads := make([]services.Upload, 0, len(headers))
	var total int64
	for _, fh := range headers {
		name := strings.TrimSpace(fh.Filename)
		if name == "" {
			s.reject(w, r, http.StatusUnprocessableEntity, "file without a name")
			return
		}
		if fh.Size == 0 {
			s.reject(w, r, http.StatusUnprocessableEntity, fmt.Sprintf("file %q is empty", name))
			return
		}
		uploads = append(uploads, services.Upload{Name: name, Size: fh.Size})
		total += fh.Size
	}

	jobID := "job-" + uuid.NewString()
	ctx := logger.WithJobID(r.Context(), jobID)
	if err := s.pipeline.Accept(ctx, jobID, uploads); err != nil {
		logger.ErrorContext(ctx, "Failed to record ingestion job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record ingestion job")
		return
	}
	recordJobAccepted(total)
	logger.InfoContext(ctx, "Ingestion job accepted", "files", len(uploads), "bytes", total)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		jobCtx, cancel := context.WithCancel(s.baseCtx)
		defer cancel()
		s.pipeline.Run(logger.WithJobID(jobCtx, jobID), jobID, uploads)
	}()

	writeJSON(w, http.StatusAccepted, domain.TriggerResponse{
		JobID:   jobID,
		Message: fmt.Sprintf("ingestion job %s queued with %d file(s)", jobID, len(uploads)),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	jobID := job.ID
	s.hub.serveJob(s.baseCtx, w, r, jobID, func(ctx context.Context) (<-chan []byte, error) {
		return s.bus.Subscribe(ctx, jobID)
	})
}

// lookupJob resolves the {id} route parameter, answering 404 or 500 itself.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*domain.JobRecord, bool) {
	jobID := chi.URLParam(r, "id")
	job, err := s.pipeline.Job(r.Context(), jobID)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown job %q", jobID))
		return nil, false
	case err != nil:
		logger.ErrorContext(r.Context(), "Failed to load job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return nil, false
	}
	return job, true
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, status int, message string) {
	recordJobRejected(status)
	logger.WarnContext(r.Context(), "Ingestion request rejected", "status", status, "reason", message)
	writeError(w, status, message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, domain.ErrorResponse{Message: message})
}
