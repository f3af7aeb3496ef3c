package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/elonfeng/skilldex/internal/httperr"
	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/analyze"
	"github.com/elonfeng/skilldex/pkg/tech"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Store is the read side of the catalog.
type Store interface {
	GetSkill(ctx context.Context, id int64) (*store.Skill, error)
	ListSkills(ctx context.Context, opts store.ListOpts) ([]store.Skill, error)
	ListSkillsByTechnology(ctx context.Context, technology string, limit int) ([]store.Skill, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

// Analyzer runs and loads repository analyses.
type Analyzer interface {
	Analyze(ctx context.Context, repoURL string) (*analyze.Report, error)
	Get(ctx context.Context, urlID string) (*analyze.Report, error)
}

// Backfiller starts a discovery pass.
type Backfiller interface {
	Start(ctx context.Context) error
}

// Server provides the HTTP API.
type Server struct {
	store    Store
	registry *tech.Registry
	analyzer Analyzer
	backfill Backfiller
	log      *slog.Logger
	port     int
}

// New creates a new HTTP server. analyzer and backfill may be nil; their endpoints
// then answer 503.
func New(s Store, registry *tech.Registry, analyzer Analyzer, backfill Backfiller, log *slog.Logger, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:    s,
		registry: registry,
		analyzer: analyzer,
		backfill: backfill,
		log:      log,
		port:     port,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/technologies", s.handleTechnologies)
	mux.HandleFunc("GET /api/v1/technologies/{id}/skills", s.handleTechnologySkills)
	mux.HandleFunc("GET /api/v1/skills", s.handleSkills)
	mux.HandleFunc("GET /api/v1/skills/{id}", s.handleSkill)
	mux.HandleFunc("GET /api/v1/skills/{id}/content", s.handleSkillContent)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("POST /api/v1/analyses", s.handleCreateAnalysis)
	mux.HandleFunc("GET /api/v1/analyses/{urlID}", s.handleAnalysis)
	mux.HandleFunc("POST /api/v1/backfill", s.handleBackfill)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		s.log.Info("server stopped")
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTechnologies(w http.ResponseWriter, r *http.Request) {
	techs := s.registry.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  techs,
		"count": len(techs),
	})
}

func (s *Server) handleTechnologySkills(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.registry.Lookup(id); !ok {
		writeError(w, httperr.New("unknown technology "+id, http.StatusNotFound))
		return
	}

	skills, err := s.store.ListSkillsByTechnology(r.Context(), id, parseLimit(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  skills,
		"count": len(skills),
	})
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.store.ListSkills(r.Context(), store.ListOpts{
		Source: r.URL.Query().Get("source"),
		Limit:  parseLimit(r),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  skills,
		"count": len(skills),
	})
}

func (s *Server) loadSkill(w http.ResponseWriter, r *http.Request) (*store.Skill, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, httperr.New("invalid skill id", http.StatusBadRequest))
		return nil, false
	}
	sk, err := s.store.GetSkill(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return sk, true
}

func (s *Server) handleSkill(w http.ResponseWriter, r *http.Request) {
	sk, ok := s.loadSkill(w, r)
	if !ok {
		return
	}
	sk.Content = nil
	writeJSON(w, http.StatusOK, sk)
}

func (s *Server) handleSkillContent(w http.ResponseWriter, r *http.Request) {
	sk, ok := s.loadSkill(w, r)
	if !ok {
		return
	}
	if sk.Content == nil {
		writeError(w, httperr.New("content not fetched yet", http.StatusNotFound))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(*sk.Content))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type analysisRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, httperr.New("analysis disabled", http.StatusServiceUnavailable))
		return
	}
	var req analysisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil || req.URL == "" {
		writeError(w, httperr.New("body must be {\"url\": \"https://github.com/owner/repo\"}", http.StatusBadRequest))
		return
	}

	rep, err := s.analyzer.Analyze(r.Context(), req.URL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, httperr.New("analysis disabled", http.StatusServiceUnavailable))
		return
	}
	rep, err := s.analyzer.Get(r.Context(), r.PathValue("urlID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	if s.backfill == nil {
		writeError(w, httperr.New("backfill disabled", http.StatusServiceUnavailable))
		return
	}
	if err := s.backfill.Start(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// parseLimit reads ?limit=, defaulting to 20 and capping at 100.
func parseLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		err = httperr.WithCode(err, http.StatusNotFound)
	}
	if code := httperr.Code(err); code >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httperr.Code(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
