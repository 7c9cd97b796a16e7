package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/store"
)

// Server is the HTTP + WebSocket API surface for rankdesk.
type Server struct {
	cfg      Config
	deps     Deps
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// New builds the router over deps. Store, Accounts, Tokens and Audits are
// required.
func New(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("server: store is required")
	case deps.Accounts == nil:
		return nil, errors.New("server: accounts service is required")
	case deps.Tokens == nil:
		return nil, errors.New("server: token manager is required")
	case deps.Audits == nil:
		return nil, errors.New("server: audit service is required")
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = DefaultConfig().WatchInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return cfg.AllowOrigin == "" || r.Header.Get("Origin") == cfg.AllowOrigin
			},
		},
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)
	if s.deps.Metrics != nil {
		r.Use(s.metricsMiddleware)
	}

	// CORS preflight
	r.Options("/api/*", s.optionsHandler("GET, POST, PUT"))

	r.Get("/ping", s.handlePing)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/signup", s.handleSignup)
	r.Post("/api/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/api/auth/me", s.handleMe)

		r.With(s.requireRole()).Get("/api/organizations", s.handleListOrganizations)
		r.With(s.requireRole()).Post("/api/organizations", s.handleCreateOrganization)

		r.Get("/api/campaigns", s.handleListCampaigns)
		r.Get("/api/campaigns/{id}", s.handleGetCampaign)
		r.With(s.requirePermission(permViewAllCampaigns)).Post("/api/campaigns", s.handleCreateCampaign)
		r.With(s.requirePermission(permViewAllCampaigns)).Put("/api/campaigns/{id}", s.handleUpdateCampaign)

		r.Get("/api/tasks", s.handleListTasks)
		r.With(s.requirePermission(permAssignTasks)).Post("/api/tasks", s.handleCreateTask)
		r.Put("/api/tasks/{id}", s.handleUpdateTask)

		r.Get("/api/audits", s.handleListAudits)
		r.With(s.requirePermission(permViewAllCampaigns)).Post("/api/audits", s.handleStartAudit)
		r.Get("/api/audits/{id}", s.handleGetAudit)
		r.Get("/ws/audits/{id}", s.handleWatchAudit)

		r.With(s.requirePermission(permViewAllCampaigns)).Post("/api/competitors/analyze", s.handleAnalyzeCompetitors)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := s.cfg.AllowOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// metricsMiddleware counts requests by route pattern, so path parameters
// do not explode label cardinality.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.deps.Metrics.ObserveRequest(r.Method, route, responseStatus(ww, r))
	})
}

// ServeHTTP implements http.Handler. Request bodies are not logged since
// they carry credentials.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	s.router.ServeHTTP(ww, r)

	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
		{Key: "status", Value: responseStatus(ww, r)},
		{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
	}
	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}
	s.logger.Info("http_request", fields...)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // websocket watches stream
	}
}

// responseStatus reports the code written through ww. A handler that wrote
// nothing answered 200, unless the connection was hijacked for a websocket.
func responseStatus(ww middleware.WrapResponseWriter, r *http.Request) int {
	if code := ww.Status(); code != 0 {
		return code
	}
	if websocket.IsWebSocketUpgrade(r) {
		return http.StatusSwitchingProtocols
	}
	return http.StatusOK
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeStoreError maps store.ErrNotFound to 404 with notFoundMsg and
// anything else to 500.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, op, notFoundMsg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	s.logger.Warn(op, logging.Err(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// publicAudit hides the internal finalize claim from API consumers.
func publicAudit(a *model.Audit) *model.Audit {
	cp := *a
	cp.Status = a.PublicStatus()
	return &cp
}

func publicAudits(as []model.Audit) []*model.Audit {
	out := make([]*model.Audit, 0, len(as))
	for i := range as {
		out = append(out, publicAudit(&as[i]))
	}
	return out
}

// --- Health ---

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	connected := s.deps.Store.Ping(r.Context()) == nil
	writeJSON(w, http.StatusOK, PingResponse{
		Status:         "ok",
		Message:        "SEO Agency Platform API",
		StoreConnected: connected,
	})
}
