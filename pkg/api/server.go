// Package api serves bow-tie diagrams over HTTP: CRUD, typed mutations,
// import/export, archiving, live views over server-sent events and a
// read-only GraphQL endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/api/middleware"
	"github.com/dd0wney/cluso-bowtie/pkg/archive"
	"github.com/dd0wney/cluso-bowtie/pkg/auth"
	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/editor"
	"github.com/dd0wney/cluso-bowtie/pkg/graphql"
	"github.com/dd0wney/cluso-bowtie/pkg/health"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
	"github.com/dd0wney/cluso-bowtie/pkg/pubsub"
	"github.com/dd0wney/cluso-bowtie/pkg/validation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures a Server
type Options struct {
	Pipeline        pipeline.Options
	MaxDiagrams     int
	MaxBodyBytes    int64
	GraphQLMaxDepth int
	CORSOrigins     []string
	Version         string
	// KeepAlive is the SSE comment interval; defaults to 15s
	KeepAlive time.Duration
}

// Server represents the HTTP API server
type Server struct {
	opts      Options
	store     *Store
	events    *pubsub.PubSub
	archiver  *archive.Archiver
	validator middleware.TokenValidator
	jwt       *auth.JWTManager
	keys      *auth.APIKeyStore
	graphql   http.Handler
	health    *health.Checker
	logger    logging.Logger
	metrics   *metrics.Registry
	startTime time.Time
}

// NewServer creates a server. logger and reg may be nil; events may be nil
// to disable live streams.
func NewServer(opts Options, events *pubsub.PubSub, logger logging.Logger, reg *metrics.Registry) (*Server, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}
	opts.KeepAlive = validation.DefaultOr(opts.KeepAlive, 15*time.Second)
	opts.Version = validation.DefaultOr(opts.Version, "dev")
	// 0 keeps the handler's default
	opts.GraphQLMaxDepth = validation.ClampInt(opts.GraphQLMaxDepth, 0, 16)

	s := &Server{
		opts:      opts,
		store:     NewStore(opts.MaxDiagrams, reg),
		events:    events,
		logger:    logger.With(logging.Component("api")),
		metrics:   reg,
		health:    health.NewChecker(),
		startTime: time.Now(),
	}

	s.health.RegisterLivenessCheck("process", health.Alive())
	s.health.RegisterLivenessCheck("memory", health.MemoryCheck(nil))
	s.health.RegisterReadinessCheck("diagrams", health.CapacityCheck(s.store.Usage))
	if events != nil {
		s.health.RegisterReadinessCheck("events", health.ProbeCheck("events", func() error {
			if events.IsShutdown() {
				return pubsub.ErrShutdown
			}
			return nil
		}))
	}

	schema, err := graphql.GenerateSchema(s.store)
	if err != nil {
		return nil, err
	}
	s.graphql = graphql.NewGraphQLHandler(schema, opts.GraphQLMaxDepth)
	return s, nil
}

// SetArchiver enables POST /diagrams/{id}/archive
func (s *Server) SetArchiver(a *archive.Archiver) {
	s.archiver = a
	if a == nil {
		return
	}
	s.health.RegisterReadinessCheck("archive", health.ProbeCheck("archive", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return a.Ping(ctx)
	}))
}

// SetAuth requires bearer tokens issued by m on every route except the
// health probes and /metrics
func (s *Server) SetAuth(m *auth.JWTManager) {
	s.jwt = m
	s.rebuildValidator()
}

// SetAPIKeys enables the /apikeys routes and accepts keys from the store as
// bearer tokens alongside JWTs
func (s *Server) SetAPIKeys(keys *auth.APIKeyStore) {
	s.keys = keys
	s.rebuildValidator()
}

func (s *Server) rebuildValidator() {
	switch {
	case s.keys != nil && s.jwt != nil:
		s.validator = auth.NewCompositeTokenValidator(s.keys, s.jwt)
	case s.keys != nil:
		s.validator = auth.NewCompositeTokenValidator(s.keys)
	case s.jwt != nil:
		s.validator = s.jwt
	default:
		s.validator = nil
	}
}

// Store returns the diagram store
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the routed handler wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/live", s.health.LivenessHandler())
	mux.HandleFunc("GET /health/ready", s.health.ReadinessHandler())
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	}

	mux.Handle("GET /diagrams", s.require(auth.RoleViewer, s.handleListDiagrams))
	mux.Handle("POST /diagrams", s.require(auth.RoleEditor, s.handleCreateDiagram))
	mux.Handle("GET /diagrams/{id}", s.require(auth.RoleViewer, s.handleGetDiagram))
	mux.Handle("DELETE /diagrams/{id}", s.require(auth.RoleEditor, s.handleDeleteDiagram))
	mux.Handle("GET /diagrams/{id}/export", s.require(auth.RoleViewer, s.handleExport))
	mux.Handle("POST /diagrams/{id}/import", s.require(auth.RoleEditor, s.handleImport))
	mux.Handle("POST /diagrams/{id}/mutations", s.require(auth.RoleEditor, s.handleMutation))
	mux.Handle("GET /diagrams/{id}/events", s.require(auth.RoleViewer, s.handleEvents))
	mux.Handle("POST /diagrams/{id}/archive", s.require(auth.RoleEditor, s.handleArchive))

	mux.Handle("GET /apikeys", s.require(auth.RoleAdmin, s.handleListAPIKeys))
	mux.Handle("POST /apikeys", s.require(auth.RoleAdmin, s.handleCreateAPIKey))
	mux.Handle("DELETE /apikeys/{id}", s.require(auth.RoleAdmin, s.handleRevokeAPIKey))

	// GraphQL is read-only, so viewers may POST to it
	mux.Handle("/graphql", s.require(auth.RoleViewer, s.graphql.ServeHTTP))

	var recorder middleware.MetricsRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}

	var h http.Handler = mux
	h = middleware.PanicRecovery(s.logger)(h)
	h = middleware.BodySizeLimit(s.opts.MaxBodyBytes)(h)
	h = middleware.Metrics(recorder)(h)
	h = middleware.Logging(s.logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(s.opts.CORSOrigins))(h)
	return h
}

// require wraps h with bearer auth for role. Without a validator it is a
// no-op.
func (s *Server) require(role string, h http.HandlerFunc) http.Handler {
	var recorder middleware.AuthFailureRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	return middleware.Auth(s.validator, func(*http.Request) string { return role }, recorder)(h)
}

// newEditor creates an editor whose changes are published to id's topic
func (s *Server) newEditor(id string) *editor.Editor {
	return editor.New(bowtie.Graph{}, editor.Config{
		ID:       id,
		Pipeline: s.opts.Pipeline,
		Logger:   s.logger,
		Metrics:  s.metrics,
		OnChange: func(_ bowtie.Graph, view *pipeline.View) {
			s.publish(id, pubsub.EventView, DiagramResponse{ID: id, View: view})
		},
	})
}

func (s *Server) publish(id, kind string, payload any) {
	if s.events == nil {
		return
	}
	s.events.Publish(id, pubsub.Event{Kind: kind, Payload: payload})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.opts.Version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Diagrams:  s.store.Len(),
		Auth:      s.validator != nil,
	}
	if s.archiver != nil {
		resp.Archive = s.archiver.Sink().Name()
	}
	if s.metrics != nil {
		s.metrics.UpdateSystemMetrics(s.startTime)
	}
	s.respondJSON(w, http.StatusOK, resp)
}
