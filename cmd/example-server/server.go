package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gidyola79/VidioAgent/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Server holds the stub backend dependencies.
type Server struct {
	cfg    *ServerConfig
	store  *Store
	logger *logging.Logger
}

// NewServer creates a Server over the given store.
func NewServer(cfg *ServerConfig, store *Store, logger *logging.Logger) *Server {
	return &Server{cfg: cfg, store: store, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.loginHandler).Methods(http.MethodPost)
	api.HandleFunc("/business/register", s.registerHandler).Methods(http.MethodPost)
	api.HandleFunc("/businesses", s.listBusinessesHandler).Methods(http.MethodGet)
	api.HandleFunc("/businesses/{id:[0-9]+}", s.getBusinessHandler).Methods(http.MethodGet)
	api.Handle("/analyze", s.authMiddleware(http.HandlerFunc(s.analyzeHandler))).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// Run starts the HTTP server and shuts it down gracefully when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("starting server on %s", s.cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.logger.Infof("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Infof("server exited")
	return nil
}

// healthHandler handles GET /health
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

func missingField(location, name string) ValidationIssue {
	return ValidationIssue{Loc: []string{location, name}, Msg: "field required", Type: "value_error.missing"}
}
