package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/vialegal/docket/internal/chain"
	"github.com/vialegal/docket/internal/common"
	"github.com/vialegal/docket/internal/extract"
	"github.com/vialegal/docket/internal/llm"
	"github.com/vialegal/docket/internal/manager"
	"github.com/vialegal/docket/internal/record"
	"github.com/vialegal/docket/internal/store"
)

type Server struct {
	router     chi.Router
	manager    *manager.Manager
	store      *store.Store
	provider   llm.Provider
	extractors map[record.Kind]extract.Extractor
	uploadRoot string
}

// Config controls how the API server handles document uploads.
type Config struct {
	UploadRoot string
}

func DefaultConfig() Config {
	return Config{UploadRoot: filepath.Join(os.TempDir(), "docket_uploads")}
}

func NewServer(mgr *manager.Manager, st *store.Store, provider llm.Provider, extractors map[record.Kind]extract.Extractor, cfg *Config) (*Server, error) {
	if mgr == nil {
		return nil, fmt.Errorf("manager required")
	}
	if st == nil {
		return nil, fmt.Errorf("store required")
	}
	resolved := DefaultConfig()
	if cfg != nil && strings.TrimSpace(cfg.UploadRoot) != "" {
		resolved.UploadRoot = strings.TrimSpace(cfg.UploadRoot)
	}
	if err := os.MkdirAll(resolved.UploadRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	srv := &Server{
		router:     chi.NewRouter(),
		manager:    mgr,
		store:      st,
		provider:   provider,
		extractors: extractors,
		uploadRoot: resolved.UploadRoot,
	}
	srv.routes()
	return srv, nil
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/v1/logs", s.handleLogs)

	s.router.Post("/case/", s.handleCreateCase)
	s.router.Route("/case/{caseID}", func(r chi.Router) {
		r.Post("/demand-event/", s.documentEventHandler(record.KindDemandText))
		r.Post("/bill-event/", s.documentEventHandler(record.KindBill))
		r.Post("/note-event/", s.documentEventHandler(record.KindPromissoryNote))
		r.Post("/dispatch-event/", s.documentEventHandler(record.KindDispatchResolution))
		r.Post("/exceptions-event/", s.documentEventHandler(record.KindExceptions))
		r.Post("/fraud-event/", s.documentEventHandler(record.KindFraudReport))
		r.Get("/events/", s.handleListEvents)
		r.Delete("/future-events/", s.handleClearFutureEvents)
		r.Put("/future-events/", s.handleResimulate)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]interface{}{"message": err.Error(), "code": status})
}

// statusForError maps domain errors to HTTP statuses. Anything the caller
// can fix by changing the request is a 4xx and is never retried.
func statusForError(err error) int {
	var pe *chain.PredecessorError
	switch {
	case errors.Is(err, chain.ErrCaseNotFound), errors.Is(err, chain.ErrEventNotFound):
		return http.StatusNotFound
	case errors.As(err, &pe), errors.Is(err, chain.ErrChainRootExists):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chain.ErrChainInconsistent):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := append([]common.LogEntry(nil), common.LogEntries()...)
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}
