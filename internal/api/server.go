// Package api exposes the slot availability engine over HTTP for the club's
// mobile app. The bot and the API share one database, so both render menus
// from the same holding intervals.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cueclub/internal/model"
	"cueclub/internal/slots"
)

// AvailabilityStore supplies the holding intervals the menu is built from.
type AvailabilityStore interface {
	HoldingIntervals(ctx context.Context, date string, game model.GameType) ([]slots.Interval, error)
}

// HTTPServer serves the availability API.
type HTTPServer struct {
	store  AvailabilityStore
	cache  *redis.Client // nil disables response caching
	logger zerolog.Logger
	server *http.Server
}

// NewHTTPServer creates the API server. cache may be nil.
func NewHTTPServer(addr string, store AvailabilityStore, cache *redis.Client, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		store:  store,
		cache:  cache,
		logger: logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/availability", s.handleAvailability)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("availability API listening")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
