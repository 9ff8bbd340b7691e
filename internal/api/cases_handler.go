package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vialegal/docket/internal/chain"
)

type createCaseRequest struct {
	Simulated bool `json:"simulated"`
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}
	c := &chain.Case{
		ID:        uuid.NewString(),
		Status:    chain.CaseDraft,
		Simulated: req.Simulated,
	}
	if err := s.store.CreateCase(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	simulated := strings.EqualFold(r.URL.Query().Get("simulated"), "true")
	if _, err := s.store.GetCase(r.Context(), caseID); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	events, err := s.manager.Events(r.Context(), caseID, simulated)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if events == nil {
		events = []chain.CaseEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// eventIDParam reads the anchor event id from the query string, and checks
// the event actually belongs to the routed case.
func (s *Server) eventIDParam(r *http.Request) (*chain.CaseEvent, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("event_id"))
	if raw == "" {
		return nil, fmt.Errorf("event_id query parameter required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid event_id %q", raw)
	}
	ev, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if ev.CaseID != chi.URLParam(r, "caseID") {
		return nil, chain.ErrEventNotFound
	}
	return ev, nil
}

func (s *Server) handleClearFutureEvents(w http.ResponseWriter, r *http.Request) {
	ev, err := s.eventIDParam(r)
	if err != nil {
		writeError(w, paramStatus(err), err)
		return
	}
	if err := s.manager.ClearFutureEvents(r.Context(), ev.ID); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared_after": ev.ID})
}

func (s *Server) handleResimulate(w http.ResponseWriter, r *http.Request) {
	ev, err := s.eventIDParam(r)
	if err != nil {
		writeError(w, paramStatus(err), err)
		return
	}
	replayed, err := s.manager.Resimulate(r.Context(), ev.ID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if replayed == nil {
		replayed = []chain.CaseEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"anchor": ev.ID, "events": replayed})
}

func paramStatus(err error) int {
	if status := statusForError(err); status != http.StatusInternalServerError {
		return status
	}
	return http.StatusBadRequest
}
