// internal/enginestub/server.go
package enginestub

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/automate-cli/internal/automation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const shutdownTimeout = 5 * time.Second

// Server is a local stand-in for the automation engine. It plans with Plan
// and pretends to execute; nothing touches the real desktop.
type Server struct {
	logger   *zap.Logger
	router   *mux.Router
	server   *http.Server
	tlsCert  *tls.Certificate
	executed atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithTLS serves HTTPS with cert. HTTP/2 is negotiated when the client offers it.
func WithTLS(cert tls.Certificate) Option {
	return func(s *Server) { s.tlsCert = &cert }
}

// New creates a stub engine that will listen on addr.
func New(addr string, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger.Named("enginestub")}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.tlsCert != nil {
		s.server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*s.tlsCert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return s
}

func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware, s.loggingMiddleware)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/direct-automate", s.handleDirect).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/automate", s.handleAutomate).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/generate-actions", s.handleGenerate).Methods(http.MethodPost, http.MethodOptions)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no such endpoint: %s", r.URL.Path))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	})
	return router
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler { return s.router }

// Address returns the configured listen address.
func (s *Server) Address() string { return s.server.Addr }

// Executed returns the total number of actions the stub has "run".
func (s *Server) Executed() int64 { return s.executed.Load() }

// Run serves until ctx is canceled, then shuts down gracefully. ready, if
// non-nil, receives the bound address once the listener is open.
func (s *Server) Run(ctx context.Context, ready chan<- string) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.logger.Info("Stub engine listening", zap.String("addr", ln.Addr().String()), zap.Bool("tls", s.tlsCert != nil))
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		if s.tlsCert != nil {
			errCh <- s.server.ServeTLS(ln, "", "")
			return
		}
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down stub engine")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stub shutdown failed: %w", err)
	}
	<-errCh
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+automation.RequestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(automation.RequestIDHeader); id != "" {
			w.Header().Set(automation.RequestIDHeader, id)
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get(automation.RequestIDHeader)),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type healthResponse struct {
	Status   string `json:"status"`
	Engine   string `json:"engine"`
	Protocol string `json:"protocol"`
}

type generateResponse struct {
	Actions []automation.RawAction `json:"actions"`
}

// automateResponse uses the engine's legacy count name.
type automateResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	ExecutedActions int    `json:"executedActions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Engine: "stub", Protocol: r.Proto})
}

func (s *Server) handleDirect(w http.ResponseWriter, r *http.Request) {
	var req automation.DirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	actions, err := Plan(req.Objective)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n := len(actions)
	s.executed.Add(int64(n))
	writeJSON(w, http.StatusOK, automation.Result{
		Success:         true,
		Message:         fmt.Sprintf("Executed %d actions for %q", n, req.Objective),
		ActionsExecuted: &n,
	})
}

func (s *Server) handleAutomate(w http.ResponseWriter, r *http.Request) {
	var req automation.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	for i, action := range req.Actions {
		if err := Validate(action); err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("action %d: %v", i, err))
			return
		}
	}

	n := len(req.Actions)
	s.executed.Add(int64(n))
	writeJSON(w, http.StatusOK, automateResponse{
		Success:         true,
		Message:         fmt.Sprintf("Executed %d actions", n),
		ExecutedActions: n,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req automation.DirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	actions, err := Plan(req.Objective)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Actions: actions})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
