package www

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed static
var embedded embed.FS

const shutdownTimeout = 5 * time.Second

// Clients is the part of the hub the health check needs.
type Clients interface {
	http.Handler
	Clients(ctx context.Context) int
}

type Options struct {
	Addr string
	// StaticDir serves assets from disk instead of the embedded copy.
	StaticDir string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

type Server struct {
	opts   Options
	hub    Clients
	assets fs.FS
	router *chi.Mux
	logger *log.Logger
}

func New(opts Options, hub Clients, logger *log.Logger) (*Server, error) {
	assets, err := Assets(opts.StaticDir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:   opts,
		hub:    hub,
		assets: assets,
		router: chi.NewRouter(),
		logger: logger,
	}
	s.routes()
	return s, nil
}

// Assets returns the display page files, from dir when given.
func Assets(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(embedded, "static")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static dir %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(s.assets))))
	r.Get("/ws", s.hub.ServeHTTP)
	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := fs.ReadFile(s.assets, "index.html")
	if err != nil {
		s.logger.Error("read index.html", "error", err)
		http.Error(w, "Failed to load page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.Clients(r.Context()),
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("http", "url", "http://localhost"+s.opts.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
