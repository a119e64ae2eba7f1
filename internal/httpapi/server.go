// Package httpapi exposes the resource managers as a JSON HTTP API.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"recordstore/resource"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes API requests to the registry's managers.
type Server struct {
	registry *resource.Registry
	pinger   Pinger
	router   chi.Router
	openapi  *openapi3.T

	basePath string
	timeout  time.Duration
	tracing  bool
	tracer   trace.TracerProvider
	version  string
}

// Option configures a Server.
type Option func(*Server)

// WithBasePath mounts the entity routes under path.
func WithBasePath(path string) Option {
	return func(s *Server) {
		s.basePath = BasePath(path)
	}
}

// BasePath normalizes a mount path to a leading slash and no trailing slash.
// The root path becomes empty.
func BasePath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return ""
	}
	return "/" + path
}

// WithRequestTimeout bounds each entity request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithTracing wraps the handler with OpenTelemetry instrumentation.
func WithTracing(enabled bool) Option {
	return func(s *Server) {
		s.tracing = enabled
	}
}

// WithTracerProvider reports request spans to tp instead of the global
// provider. It implies WithTracing(true).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracing = true
		s.tracer = tp
	}
}

// WithVersion sets the version reported by the OpenAPI document.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a server for the registry's entities.
func New(registry *resource.Registry, pinger Pinger, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		pinger:   pinger,
		router:   chi.NewRouter(),
		basePath: "/api",
		timeout:  30 * time.Second,
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.openapi = OpenAPI(registry.Schemas(), s.basePath, s.version)
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	if s.tracing {
		var opts []otelhttp.Option
		if s.tracer != nil {
			opts = append(opts, otelhttp.WithTracerProvider(s.tracer))
		}
		return otelhttp.NewHandler(s.router, "recordstore", opts...)
	}
	return s.router
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/openapi.json", s.openAPIDocument)

	entities := func(r chi.Router) {
		if s.timeout > 0 {
			r.Use(chimiddleware.Timeout(s.timeout))
		}
		r.Route("/{entity}", func(r chi.Router) {
			r.Use(s.entityCtx)
			r.Post("/", s.create)
			r.Get("/", s.list)
			r.Put("/", s.update)
			r.Delete("/", s.delete)
			r.Get("/{id}", s.read)
			r.Put("/{id}", s.updateByID)
			r.Delete("/{id}", s.deleteByID)
			r.Get("/{id}/{related}", s.related)
		})
	}
	if s.basePath == "" {
		r.Group(entities)
	} else {
		r.Route(s.basePath, entities)
	}
}
