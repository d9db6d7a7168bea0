// Package server exposes the message store over HTTP/JSON so remote feed
// clients can page history, send and delete messages.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/tOgg1/dmfeed/internal/db"
	"github.com/tOgg1/dmfeed/internal/logging"
	"github.com/tOgg1/dmfeed/internal/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxBodyBytes     = 64 << 10
)

// Config holds server settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Server serves the dmfeed API.
type Server struct {
	cfg      Config
	messages *db.MessageRepository
	users    *db.UserRepository
	registry *prometheus.Registry
	metrics  *Metrics
	logger   zerolog.Logger
	handler  http.Handler
}

// New creates a server backed by database.
func New(database *db.DB, cfg Config) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	s := &Server{
		cfg:      cfg,
		messages: db.NewMessageRepository(database),
		users:    db.NewUserRepository(database),
		registry: registry,
		metrics:  NewMetrics(registry),
		logger:   logging.Component("server"),
	}
	s.handler = s.buildHandler()
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/conversations/{a}/{b}/messages", s.handleListMessages).Methods("GET")
	api.HandleFunc("/messages", s.handleCreateMessage).Methods("POST")
	api.HandleFunc("/messages/{id}", s.handleDeleteMessage).Methods("DELETE")
	api.HandleFunc("/users", s.handleListUsers).Methods("GET")
	api.HandleFunc("/users", s.handleCreateUser).Methods("POST")
	api.HandleFunc("/users/{ref}", s.handleGetUser).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", models.UserIDHeader},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Strs("allowed_origins", s.cfg.AllowedOrigins).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	s.logger.Info().Msg("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// JSON writes data with the given status.
func (s *Server) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode response")
	}
}

// Error writes a JSON error body.
func (s *Server) Error(w http.ResponseWriter, status int, message string) {
	s.JSON(w, status, models.ErrorResponse{Error: message})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(models.UserIDHeader))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
