package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vialegal/docket/internal/chain"
	"github.com/vialegal/docket/internal/common"
)

// CreateCase inserts a new case row.
func (s *Store) CreateCase(ctx context.Context, c *chain.Case) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("store: case id required")
	}
	if c.Status == "" {
		c.Status = chain.CaseDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cases (id, status, simulated, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Status, c.Simulated, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: create case: %w", err)
	}
	return nil
}

// GetCase loads a case by id.
func (s *Store) GetCase(ctx context.Context, id string) (*chain.Case, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var c chain.Case
	err := s.db.GetContext(ctx, &c, `SELECT id, status, simulated, created_at FROM cases WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chain.ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get case: %w", err)
	}
	return &c, nil
}

// UpdateCaseStatus transitions a case's lifecycle status.
func (s *Store) UpdateCaseStatus(ctx context.Context, id string, status chain.CaseStatus) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE cases SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("store: update case status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update case status: %w", err)
	}
	if affected == 0 {
		return chain.ErrCaseNotFound
	}
	return nil
}

// EnsureCourtCase resolves the court-case aggregate for a chain, creating it
// from extracted court metadata when absent.
func (s *Store) EnsureCourtCase(ctx context.Context, cc *chain.CourtCase) (*chain.CourtCase, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return ensureCourtCase(ctx, s.db, cc)
}

func ensureCourtCase(ctx context.Context, q sqlx.ExtContext, cc *chain.CourtCase) (*chain.CourtCase, error) {
	var existing chain.CourtCase
	err := sqlx.GetContext(ctx, q, &existing,
		`SELECT id, case_id, simulated, court, caption, docket FROM court_cases WHERE case_id = ? AND simulated = ?`,
		cc.CaseID, cc.Simulated)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get court case: %w", err)
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO court_cases (case_id, simulated, court, caption, docket) VALUES (?, ?, ?, ?, ?)`,
		cc.CaseID, cc.Simulated, cc.Court, cc.Caption, cc.Docket)
	if err != nil {
		return nil, fmt.Errorf("store: create court case: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create court case: %w", err)
	}
	created := *cc
	created.ID = id
	return &created, nil
}

// FindPredecessor locates the unresolved tail of the required predecessor
// type. It distinguishes "no such predecessor" from "predecessor already
// resolved" so the boundary can report both as input errors.
func (s *Store) FindPredecessor(ctx context.Context, caseID string, simulated bool, required chain.EventType) (*chain.CaseEvent, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var ev chain.CaseEvent
	err := s.db.GetContext(ctx, &ev, `
SELECT id, case_id, type, source, target, created_at, previous_event_id, next_event_id, simulated, content
FROM case_events
WHERE case_id = ? AND simulated = ? AND type = ?
ORDER BY id DESC LIMIT 1`,
		caseID, simulated, required)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &chain.PredecessorError{Required: required}
	}
	if err != nil {
		return nil, fmt.Errorf("store: find predecessor: %w", err)
	}
	if ev.Resolved() {
		return nil, &chain.PredecessorError{Required: required, Resolved: true}
	}
	return &ev, nil
}

// GetEvent loads one event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (*chain.CaseEvent, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var ev chain.CaseEvent
	err := s.db.GetContext(ctx, &ev, `
SELECT id, case_id, type, source, target, created_at, previous_event_id, next_event_id, simulated, content
FROM case_events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get event: %w", err)
	}
	return &ev, nil
}

// ListEvents returns one chain in append order.
func (s *Store) ListEvents(ctx context.Context, caseID string, simulated bool) ([]chain.CaseEvent, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var events []chain.CaseEvent
	err := s.db.SelectContext(ctx, &events, `
SELECT id, case_id, type, source, target, created_at, previous_event_id, next_event_id, simulated, content
FROM case_events WHERE case_id = ? AND simulated = ? ORDER BY id`,
		caseID, simulated)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	return events, nil
}

// AppendEvent creates a new chain event and its document in one transaction.
// The predecessor flip is guarded (`next_event_id IS NULL`), so re-delivery
// of the same document fails instead of silently duplicating. A non-nil
// courtCase is resolved or created inside the same transaction, so a failed
// append leaves no aggregate behind. buildDoc runs inside the transaction
// boundary once the event id is known; its failure rolls everything back,
// leaving no partially-linked event.
func (s *Store) AppendEvent(ctx context.Context, ev *chain.CaseEvent, courtCase *chain.CourtCase, buildDoc func(eventID int64) (*chain.Document, error)) (*chain.CaseEvent, *chain.Document, error) {
	if err := s.ensureReady(); err != nil {
		return nil, nil, err
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("store: begin append: %w", err)
	}
	defer tx.Rollback()

	if courtCase != nil {
		if _, err := ensureCourtCase(ctx, tx, courtCase); err != nil {
			return nil, nil, err
		}
	}

	if ev.PreviousEventID != nil {
		// Flipping the predecessor first keeps the open-tail unique index
		// satisfied at insert time; commit makes both visible at once.
		if err := flipPredecessor(ctx, tx, *ev.PreviousEventID, ev.Type); err != nil {
			return nil, nil, err
		}
	} else {
		var roots int
		err := tx.GetContext(ctx, &roots,
			`SELECT COUNT(*) FROM case_events WHERE case_id = ? AND simulated = ? AND type = ?`,
			ev.CaseID, ev.Simulated, chain.EventDemandStart)
		if err != nil {
			return nil, nil, fmt.Errorf("store: check chain root: %w", err)
		}
		if roots > 0 {
			return nil, nil, chain.ErrChainRootExists
		}
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO case_events (case_id, type, source, target, created_at, previous_event_id, next_event_id, simulated, content)
VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		ev.CaseID, ev.Type, ev.Source, ev.Target, ev.CreatedAt, ev.PreviousEventID, ev.Simulated, nullableJSON(ev.Content))
	if err != nil {
		return nil, nil, fmt.Errorf("store: insert event: %w", err)
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("store: insert event: %w", err)
	}
	ev.ID = eventID

	var doc *chain.Document
	if buildDoc != nil {
		doc, err = buildDoc(eventID)
		if err != nil {
			return nil, nil, fmt.Errorf("store: build document: %w", err)
		}
		if doc != nil {
			if err := insertDocument(ctx, tx, doc); err != nil {
				return nil, nil, err
			}
		}
	}

	// Replace the flip sentinel with the real successor id before commit,
	// where the deferred foreign key is finally checked.
	if ev.PreviousEventID != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE case_events SET next_event_id = ? WHERE id = ? AND next_event_id = -1`,
			eventID, *ev.PreviousEventID); err != nil {
			return nil, nil, fmt.Errorf("store: link predecessor: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("store: commit append: %w", err)
	}
	return ev, doc, nil
}

// flipPredecessor marks the predecessor as provisionally resolved. The
// guard on next_event_id keeps the tail single-successor under concurrent
// delivery.
func flipPredecessor(ctx context.Context, tx *sqlx.Tx, predecessorID int64, appending chain.EventType) error {
	var pred chain.CaseEvent
	err := tx.GetContext(ctx, &pred, `
SELECT id, case_id, type, source, target, created_at, previous_event_id, next_event_id, simulated, content
FROM case_events WHERE id = ?`, predecessorID)
	if errors.Is(err, sql.ErrNoRows) {
		required, _ := appending.Predecessor()
		return &chain.PredecessorError{Required: required}
	}
	if err != nil {
		return fmt.Errorf("store: load predecessor: %w", err)
	}
	if pred.Resolved() {
		return &chain.PredecessorError{Required: pred.Type, Resolved: true}
	}
	// Sentinel -1 keeps the open-tail index satisfied while the new event
	// row is inserted; the real successor id replaces it before commit.
	res, err := tx.ExecContext(ctx,
		`UPDATE case_events SET next_event_id = -1 WHERE id = ? AND next_event_id IS NULL`,
		predecessorID)
	if err != nil {
		return fmt.Errorf("store: flip predecessor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: flip predecessor: %w", err)
	}
	if affected == 0 {
		return &chain.PredecessorError{Required: pred.Type, Resolved: true}
	}
	return nil
}

func insertDocument(ctx context.Context, tx *sqlx.Tx, doc *chain.Document) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (event_id, type, content, storage_key, generated) VALUES (?, ?, ?, ?, ?)`,
		doc.EventID, doc.Type, nullableJSON(doc.Content), doc.StorageKey, doc.Generated)
	if err != nil {
		return fmt.Errorf("store: insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: insert document: %w", err)
	}
	doc.ID = id
	return nil
}

// InsertDocument attaches an additional document (e.g. a generated one) to
// an existing event outside the append transaction.
func (s *Store) InsertDocument(ctx context.Context, doc *chain.Document) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (event_id, type, content, storage_key, generated) VALUES (?, ?, ?, ?, ?)`,
		doc.EventID, doc.Type, nullableJSON(doc.Content), doc.StorageKey, doc.Generated)
	if err != nil {
		return fmt.Errorf("store: insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: insert document: %w", err)
	}
	doc.ID = id
	return nil
}

// DocumentsForEvent lists the documents attached to an event.
func (s *Store) DocumentsForEvent(ctx context.Context, eventID int64) ([]chain.Document, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var docs []chain.Document
	err := s.db.SelectContext(ctx, &docs,
		`SELECT id, event_id, type, content, storage_key, generated FROM documents WHERE event_id = ? ORDER BY id`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("store: documents for event: %w", err)
	}
	return docs, nil
}

// LatestResolvedDemandDocument returns the uploaded document of the most
// recent resolved demand event, or nil when the case has none.
func (s *Store) LatestResolvedDemandDocument(ctx context.Context, caseID string, simulated bool) (*chain.Document, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var doc chain.Document
	err := s.db.GetContext(ctx, &doc, `
SELECT d.id, d.event_id, d.type, d.content, d.storage_key, d.generated
FROM documents d
INNER JOIN case_events e ON e.id = d.event_id
WHERE e.case_id = ? AND e.simulated = ? AND e.type = ? AND e.next_event_id IS NOT NULL AND d.generated = 0
ORDER BY e.id DESC, d.id DESC LIMIT 1`,
		caseID, simulated, chain.EventDemandStart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest demand document: %w", err)
	}
	return &doc, nil
}

// ClearFutureEvents removes every event chained after the given one,
// cascading through their documents and suggestions, and severs the
// anchor's next_event_id. It returns the removed documents so the caller
// can clean up blob storage.
func (s *Store) ClearFutureEvents(ctx context.Context, eventID int64) ([]chain.Document, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	logger := common.Logger()
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("store: begin clear: %w", err)
	}
	defer tx.Rollback()

	var anchor chain.CaseEvent
	err = tx.GetContext(ctx, &anchor, `
SELECT id, case_id, type, source, target, created_at, previous_event_id, next_event_id, simulated, content
FROM case_events WHERE id = ?`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load anchor: %w", err)
	}

	// Walk the forward pointers collecting the tail to remove.
	var removedIDs []int64
	next := anchor.NextEventID
	for next != nil {
		var ev chain.CaseEvent
		err := tx.GetContext(ctx, &ev, `
SELECT id, case_id, type, source, target, created_at, previous_event_id, next_event_id, simulated, content
FROM case_events WHERE id = ?`, *next)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chain.ErrChainInconsistent
		}
		if err != nil {
			return nil, fmt.Errorf("store: walk chain: %w", err)
		}
		removedIDs = append(removedIDs, ev.ID)
		next = ev.NextEventID
	}
	if len(removedIDs) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("store: commit clear: %w", err)
		}
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT id, event_id, type, content, storage_key, generated FROM documents WHERE event_id IN (?)`, removedIDs)
	if err != nil {
		return nil, fmt.Errorf("store: collect documents: %w", err)
	}
	var removedDocs []chain.Document
	if err := tx.SelectContext(ctx, &removedDocs, query, args...); err != nil {
		return nil, fmt.Errorf("store: collect documents: %w", err)
	}

	// Break the self-references before deleting so the foreign keys stay
	// satisfied at every statement.
	ids := append([]int64{anchor.ID}, removedIDs...)
	query, args, err = sqlx.In(`UPDATE case_events SET next_event_id = NULL, previous_event_id = NULL WHERE id IN (?)`, removedIDs)
	if err != nil {
		return nil, fmt.Errorf("store: unlink events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("store: unlink events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE case_events SET next_event_id = NULL WHERE id = ?`, anchor.ID); err != nil {
		return nil, fmt.Errorf("store: reset anchor: %w", err)
	}
	query, args, err = sqlx.In(`DELETE FROM case_events WHERE id IN (?)`, removedIDs)
	if err != nil {
		return nil, fmt.Errorf("store: delete events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("store: delete events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit clear: %w", err)
	}
	logger.Info("store: cleared future events", "anchor", anchor.ID, "removed", len(removedIDs), "chain", len(ids))
	return removedDocs, nil
}

// DeleteChain removes one whole chain (all events of a (case_id, simulated)
// pair) with its documents and suggestions, returning the removed documents
// for blob cleanup. Deleting an empty chain is a no-op.
func (s *Store) DeleteChain(ctx context.Context, caseID string, simulated bool) ([]chain.Document, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("store: begin delete chain: %w", err)
	}
	defer tx.Rollback()

	var ids []int64
	if err := tx.SelectContext(ctx, &ids,
		`SELECT id FROM case_events WHERE case_id = ? AND simulated = ?`, caseID, simulated); err != nil {
		return nil, fmt.Errorf("store: list chain: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT id, event_id, type, content, storage_key, generated FROM documents WHERE event_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: collect documents: %w", err)
	}
	var removedDocs []chain.Document
	if err := tx.SelectContext(ctx, &removedDocs, query, args...); err != nil {
		return nil, fmt.Errorf("store: collect documents: %w", err)
	}

	query, args, err = sqlx.In(`UPDATE case_events SET next_event_id = NULL, previous_event_id = NULL WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: unlink chain: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("store: unlink chain: %w", err)
	}
	query, args, err = sqlx.In(`DELETE FROM case_events WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: delete chain: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("store: delete chain: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM court_cases WHERE case_id = ? AND simulated = ?`, caseID, simulated); err != nil {
		return nil, fmt.Errorf("store: delete court case: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit delete chain: %w", err)
	}
	return removedDocs, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
