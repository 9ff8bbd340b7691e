package store

import (
	"context"
	"fmt"

	"github.com/vialegal/docket/internal/chain"
)

// InsertSuggestion stores one proposed next action for an event.
func (s *Store) InsertSuggestion(ctx context.Context, sg *chain.CaseEventSuggestion) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO case_event_suggestions (event_id, name, type, content, score, storage_key) VALUES (?, ?, ?, ?, ?, ?)`,
		sg.EventID, sg.Name, sg.Type, nullableJSON(sg.Content), sg.Score, sg.StorageKey)
	if err != nil {
		return fmt.Errorf("store: insert suggestion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: insert suggestion: %w", err)
	}
	sg.ID = id
	return nil
}

// SuggestionsForEvent lists stored suggestions, best score first.
func (s *Store) SuggestionsForEvent(ctx context.Context, eventID int64) ([]chain.CaseEventSuggestion, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var out []chain.CaseEventSuggestion
	err := s.db.SelectContext(ctx, &out,
		`SELECT id, event_id, name, type, content, score, storage_key FROM case_event_suggestions WHERE event_id = ? ORDER BY score DESC, id`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("store: suggestions for event: %w", err)
	}
	return out, nil
}
