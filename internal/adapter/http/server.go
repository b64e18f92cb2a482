package http

import (
	"fmt"
	"net/http"

	"github.com/bnema/tribora/internal/adapter/http/middleware"
	"github.com/bnema/tribora/internal/adapter/http/ratelimit"
)

type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
	files      *FileHandler
	limiter    *ratelimit.Limiter
}

// NewServer wires the API routes. files may be nil when the blob backend
// serves its own presigned URLs; limiter may be nil to disable upload
// throttling.
func NewServer(handlers *Handlers, sseHandler *SSEHandler, files *FileHandler, limiter *ratelimit.Limiter) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		handlers:   handlers,
		sseHandler: sseHandler,
		files:      files,
		limiter:    limiter,
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	api := middleware.RequireIdentity

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.mux.HandleFunc("POST /api/content", api(s.throttle(s.handlers.Upload())))
	s.mux.HandleFunc("POST /api/notes", api(s.throttle(s.handlers.CreateNote())))
	s.mux.HandleFunc("GET /api/content", api(s.handlers.List()))
	s.mux.HandleFunc("GET /api/content/{id}", api(s.handlers.Get()))
	s.mux.HandleFunc("DELETE /api/content/{id}", api(s.handlers.Delete()))
	s.mux.HandleFunc("POST /api/content/{id}/restore", api(s.handlers.Restore()))
	s.mux.HandleFunc("POST /api/content/{id}/retry", api(s.handlers.Retry()))
	s.mux.HandleFunc("GET /api/content/{id}/jobs", api(s.handlers.Jobs()))
	s.mux.HandleFunc("GET /api/content/{id}/url", api(s.handlers.SignedURL()))
	s.mux.HandleFunc("GET /api/content/{id}/events", api(s.sseHandler.Events()))
	s.mux.HandleFunc("GET /api/search", api(s.handlers.Search()))

	if s.files != nil {
		s.mux.HandleFunc("GET /files/{path...}", s.files.Serve())
	}
}

// throttle limits ingestion per organization.
func (s *Server) throttle(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := identity(r).OrgID
		if allowed, wait := s.limiter.Allow(orgID); !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(wait.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many uploads, slow down"})
			return
		}
		next(w, r)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux).ServeHTTP(w, r)
}
