package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/cif-address/internal/config"
	"github.com/cif-address/internal/normalize"
	"github.com/cif-address/internal/postal"
	"github.com/cif-address/internal/web/handlers"
	"github.com/cif-address/internal/web/middleware"
)

// Server exposes the canonicalizer over HTTP.
type Server struct {
	settings   config.ServerSettings
	httpServer *http.Server
	router     *mux.Router
}

// Store is the subset of the address store the API reads from.
type Store interface {
	handlers.PendingCounter
	handlers.RowSource
}

// Dependencies are the components the routes are backed by. Store may be
// nil, in which case /api/stats and /api/export are
// not registered.
type Dependencies struct {
	Canon      *normalize.Canonicalizer
	Index      *postal.Index
	Store      Store
	RuleColumn string
	LLMColumn  string
}

// NewServer creates a new web server instance
func NewServer(settings config.ServerSettings, deps Dependencies) *Server {
	s := &Server{settings: settings}
	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", settings.Host, settings.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(deps Dependencies) {
	s.router = mux.NewRouter()

	canon := &handlers.CanonicalizeHandler{Canon: deps.Canon, Index: deps.Index}

	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","postal_entries":%d}`, deps.Index.Len())
	}).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/canonicalize", canon.Canonicalize).Methods("POST", "OPTIONS")
	api.HandleFunc("/canonicalize/batch", canon.CanonicalizeBatch).Methods("POST", "OPTIONS")
	api.HandleFunc("/postal-code", canon.PostalCode).Methods("GET", "OPTIONS")
	api.HandleFunc("/numerals/{text}", canon.Numeral).Methods("GET", "OPTIONS")

	if deps.Store != nil {
		stats := &handlers.StatsHandler{Store: deps.Store, RuleColumn: deps.RuleColumn, LLMColumn: deps.LLMColumn}
		api.HandleFunc("/stats", stats.GetStats).Methods("GET", "OPTIONS")

		exports := &handlers.ExportHandler{Store: deps.Store}
		api.HandleFunc("/export", exports.ExportData).Methods("GET", "OPTIONS")
	}

	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging())
	api.Use(middleware.Authentication(s.settings.APIKey))
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on http://%s\n", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	fmt.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	fmt.Println("Server stopped")
	return nil
}
