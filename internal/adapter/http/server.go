package http

import (
	"net/http"
	"time"

	"github.com/bnema/captioner/internal/adapter/http/middleware"
	"github.com/bnema/captioner/internal/adapter/http/ratelimit"
	"github.com/bnema/captioner/internal/service"
)

type Config struct {
	// UploadDir receives multipart uploads.
	UploadDir string
	// AllowedRoots bounds the local paths a JSON submission may reference.
	AllowedRoots []string
	MaxUploadMB  int
	BehindProxy  bool
	Version      string
}

type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
	wsHandler  *WSHandler
	auth       *authenticator
	limiter    *ratelimit.FailureLimiter
}

// NewServer builds the HTTP surface. A nil verifier leaves the API open.
func NewServer(pipeline Pipeline, eventBus *service.EventBus, verifier TokenVerifier, cfg Config) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 500
	}
	limiter := ratelimit.NewFailureLimiter(5, 15*time.Minute, 30*time.Minute)

	s := &Server{
		mux:        http.NewServeMux(),
		handlers:   NewHandlers(pipeline, cfg),
		sseHandler: NewSSEHandler(eventBus, pipeline),
		wsHandler:  NewWSHandler(eventBus, pipeline),
		auth:       &authenticator{verifier: verifier, limiter: limiter, behindProxy: cfg.BehindProxy},
		limiter:    limiter,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	auth := s.auth.requireAuth

	s.mux.HandleFunc("GET /health", s.handlers.Health())

	s.mux.HandleFunc("GET /api/styles", auth(s.handlers.ListStyles()))
	s.mux.HandleFunc("GET /api/sessions", auth(s.handlers.ListSessions()))
	s.mux.HandleFunc("POST /api/sessions", auth(s.handlers.CreateSession()))
	s.mux.HandleFunc("GET /api/sessions/{id}", auth(s.handlers.GetSession()))
	s.mux.HandleFunc("POST /api/sessions/{id}/events", auth(s.handlers.PostEvent()))
	s.mux.HandleFunc("GET /api/sessions/{id}/output", auth(s.handlers.Output()))
	s.mux.HandleFunc("GET /api/sessions/{id}/segments/{n}/preview", auth(s.handlers.Preview()))
	s.mux.HandleFunc("GET /api/sessions/{id}/transcript.docx", auth(s.handlers.Transcript()))
	s.mux.HandleFunc("GET /ws/sessions/{id}", auth(s.wsHandler.Stream()))

	s.mux.HandleFunc("GET /sessions/{id}", auth(s.handlers.StatusPage()))
	s.mux.HandleFunc("GET /events/{id}", auth(s.sseHandler.Events()))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(middleware.RequestLog(s.mux)).ServeHTTP(w, r)
}

// Close stops the limiter cleanup goroutine.
func (s *Server) Close() {
	s.limiter.Stop()
}
