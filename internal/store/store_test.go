package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/vialegal/docket/internal/chain"
	"github.com/vialegal/docket/internal/record"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "docket_test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestCase(t *testing.T, st *Store) *chain.Case {
	t.Helper()
	c := &chain.Case{ID: "case-" + t.Name()}
	if err := st.CreateCase(context.Background(), c); err != nil {
		t.Fatalf("create case: %v", err)
	}
	return c
}

func appendEvent(t *testing.T, st *Store, caseID string, typ chain.EventType, prev *int64, content string) (*chain.CaseEvent, *chain.Document) {
	t.Helper()
	ev := &chain.CaseEvent{
		CaseID:          caseID,
		Type:            typ,
		PreviousEventID: prev,
		Content:         []byte(content),
	}
	ev, doc, err := st.AppendEvent(context.Background(), ev, nil, func(eventID int64) (*chain.Document, error) {
		return &chain.Document{
			EventID: eventID,
			Type:    kindFor(typ),
			Content: []byte(content),
		}, nil
	})
	if err != nil {
		t.Fatalf("append %s event: %v", typ, err)
	}
	return ev, doc
}

func kindFor(typ chain.EventType) record.Kind {
	switch typ {
	case chain.EventDispatchResolution:
		return record.KindDispatchResolution
	case chain.EventExceptions:
		return record.KindExceptions
	case chain.EventFraudReport:
		return record.KindFraudReport
	default:
		return record.KindDemandText
	}
}

func TestAppendEventChain(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)
	ctx := context.Background()

	root, rootDoc := appendEvent(t, st, c.ID, chain.EventDemandStart, nil, `{"city":"Santiago"}`)
	if root.PreviousEventID != nil || root.NextEventID != nil {
		t.Fatalf("root event must start unlinked: %+v", root)
	}
	if rootDoc.ID == 0 || rootDoc.EventID != root.ID {
		t.Fatalf("document not attached to root: %+v", rootDoc)
	}

	dispatch, _ := appendEvent(t, st, c.ID, chain.EventDispatchResolution, &root.ID, `{"writ_granted":true}`)
	reloaded, err := st.GetEvent(ctx, root.ID)
	if err != nil {
		t.Fatalf("reload root: %v", err)
	}
	if reloaded.NextEventID == nil || *reloaded.NextEventID != dispatch.ID {
		t.Fatalf("predecessor not flipped to %d: %+v", dispatch.ID, reloaded)
	}
	if dispatch.PreviousEventID == nil || *dispatch.PreviousEventID != root.ID {
		t.Fatalf("successor missing back pointer: %+v", dispatch)
	}

	events, err := st.ListEvents(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[0].ID != root.ID || events[1].ID != dispatch.ID {
		t.Fatalf("unexpected chain order: %+v", events)
	}
}

func TestSecondRootRejected(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)

	appendEvent(t, st, c.ID, chain.EventDemandStart, nil, `{}`)
	_, _, err := st.AppendEvent(context.Background(), &chain.CaseEvent{
		CaseID: c.ID,
		Type:   chain.EventDemandStart,
	}, nil, nil)
	if !errors.Is(err, chain.ErrChainRootExists) {
		t.Fatalf("expected ErrChainRootExists, got %v", err)
	}
}

func TestFindPredecessorMissing(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)

	_, err := st.FindPredecessor(context.Background(), c.ID, false, chain.EventDispatchResolution)
	if !errors.Is(err, chain.ErrNoPredecessor) {
		t.Fatalf("expected ErrNoPredecessor, got %v", err)
	}
	var pe *chain.PredecessorError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PredecessorError, got %T", err)
	}
	if got := pe.Error(); got != "Case does not have unresolved dispatch resolution events." {
		t.Fatalf("unexpected error message: %q", got)
	}
}

func TestFindPredecessorResolved(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)

	root, _ := appendEvent(t, st, c.ID, chain.EventDemandStart, nil, `{}`)
	appendEvent(t, st, c.ID, chain.EventDispatchResolution, &root.ID, `{}`)

	// The demand is resolved now: re-delivering a dispatch must be refused
	// with the resolved-predecessor message, making the attach idempotent.
	_, err := st.FindPredecessor(context.Background(), c.ID, false, chain.EventDemandStart)
	if !errors.Is(err, chain.ErrPredecessorResolved) {
		t.Fatalf("expected ErrPredecessorResolved, got %v", err)
	}
	var pe *chain.PredecessorError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PredecessorError, got %T", err)
	}
	if got := pe.Error(); got != "Case does not have unresolved demand text events." {
		t.Fatalf("unexpected error message: %q", got)
	}
}

func TestAppendOntoResolvedPredecessorRejected(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)

	root, _ := appendEvent(t, st, c.ID, chain.EventDemandStart, nil, `{}`)
	appendEvent(t, st, c.ID, chain.EventDispatchResolution, &root.ID, `{}`)

	_, _, err := st.AppendEvent(context.Background(), &chain.CaseEvent{
		CaseID:          c.ID,
		Type:            chain.EventDispatchResolution,
		PreviousEventID: &root.ID,
	}, nil, nil)
	if !errors.Is(err, chain.ErrPredecessorResolved) {
		t.Fatalf("expected ErrPredecessorResolved, got %v", err)
	}
}

func TestBuildDocFailureRollsBack(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)
	ctx := context.Background()

	_, _, err := st.AppendEvent(ctx, &chain.CaseEvent{
		CaseID: c.ID,
		Type:   chain.EventDemandStart,
	}, nil, func(eventID int64) (*chain.Document, error) {
		return nil, errors.New("blob write failed")
	})
	if err == nil {
		t.Fatal("expected buildDoc failure to propagate")
	}
	events, err := st.ListEvents(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("failed append must leave no events, got %d", len(events))
	}
	// The chain is still rootless, so a retry succeeds.
	appendEvent(t, st, c.ID, chain.EventDemandStart, nil, `{}`)
}

func TestFailedAppendLeavesNoCourtCase(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)
	ctx := context.Background()

	cc := &chain.CourtCase{
		CaseID:  c.ID,
		Court:   "1er Juzgado Civil de Santiago",
		Caption: "Acme con Deudor",
	}
	_, _, err := st.AppendEvent(ctx, &chain.CaseEvent{
		CaseID: c.ID,
		Type:   chain.EventDemandStart,
	}, cc, func(eventID int64) (*chain.Document, error) {
		return nil, errors.New("blob write failed")
	})
	if err == nil {
		t.Fatal("expected buildDoc failure to propagate")
	}
	var count int
	if err := st.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM court_cases WHERE case_id = ?`, c.ID); err != nil {
		t.Fatalf("count court cases: %v", err)
	}
	if count != 0 {
		t.Fatalf("rolled-back append must not leave a court case, got %d", count)
	}

	// The same aggregate lands together with a successful append.
	if _, _, err := st.AppendEvent(ctx, &chain.CaseEvent{
		CaseID: c.ID,
		Type:   chain.EventDemandStart,
	}, cc, nil); err != nil {
		t.Fatalf("retry append: %v", err)
	}
	resolved, err := st.EnsureCourtCase(ctx, &chain.CourtCase{CaseID: c.ID})
	if err != nil {
		t.Fatalf("resolve court case: %v", err)
	}
	if resolved.Court != cc.Court {
		t.Fatalf("expected the transactional court case, got %+v", resolved)
	}
}

func TestLatestResolvedDemandDocument(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)
	ctx := context.Background()

	doc, err := st.LatestResolvedDemandDocument(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected no document on empty chain, got %+v", doc)
	}

	root, rootDoc := appendEvent(t, st, c.ID, chain.EventDemandStart, nil, `{"city":"Santiago"}`)
	doc, err = st.LatestResolvedDemandDocument(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if doc != nil {
		t.Fatal("unresolved demand must not qualify")
	}

	appendEvent(t, st, c.ID, chain.EventDispatchResolution, &root.ID, `{}`)
	doc, err = st.LatestResolvedDemandDocument(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if doc == nil || doc.ID != rootDoc.ID {
		t.Fatalf("expected the demand document, got %+v", doc)
	}
}

func TestClearFutureEvents(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)
	ctx := context.Background()

	root, _ := appendEvent(t, st, c.ID, chain.EventDemandStart, nil, `{}`)
	dispatch, _ := appendEvent(t, st, c.ID, chain.EventDispatchResolution, &root.ID, `{}`)
	exceptions, _ := appendEvent(t, st, c.ID, chain.EventExceptions, &dispatch.ID, `{}`)
	if err := st.InsertSuggestion(ctx, &chain.CaseEventSuggestion{
		EventID: exceptions.ID,
		Name:    "Response to exceptions",
		Type:    chain.SuggestRespondExceptions,
		Score:   0.8,
	}); err != nil {
		t.Fatalf("insert suggestion: %v", err)
	}

	removed, err := st.ClearFutureEvents(ctx, root.ID)
	if err != nil {
		t.Fatalf("clear future events: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed documents, got %d", len(removed))
	}

	events, err := st.ListEvents(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].ID != root.ID {
		t.Fatalf("expected only the anchor to survive, got %+v", events)
	}
	if events[0].NextEventID != nil {
		t.Fatalf("anchor must be unresolved again, got next=%v", *events[0].NextEventID)
	}
	if _, err := st.GetEvent(ctx, dispatch.ID); !errors.Is(err, chain.ErrEventNotFound) {
		t.Fatalf("dispatch event should be gone, got %v", err)
	}
	docs, err := st.DocumentsForEvent(ctx, exceptions.ID)
	if err != nil {
		t.Fatalf("documents lookup: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("cascade should remove documents, got %d", len(docs))
	}
	suggestions, err := st.SuggestionsForEvent(ctx, exceptions.ID)
	if err != nil {
		t.Fatalf("suggestions lookup: %v", err)
	}
	if len(suggestions) != 0 {
		t.Fatalf("cascade should remove suggestions, got %d", len(suggestions))
	}

	// The unresolved anchor accepts a fresh successor.
	appendEvent(t, st, c.ID, chain.EventDispatchResolution, &root.ID, `{}`)
}

func TestClearFutureEventsNoop(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)

	root, _ := appendEvent(t, st, c.ID, chain.EventDemandStart, nil, `{}`)
	removed, err := st.ClearFutureEvents(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("clear on tail: %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("expected no removals, got %d", len(removed))
	}
}

func TestDeleteChain(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)
	ctx := context.Background()

	root, _ := appendEvent(t, st, c.ID, chain.EventDemandStart, nil, `{}`)
	appendEvent(t, st, c.ID, chain.EventDispatchResolution, &root.ID, `{}`)

	removed, err := st.DeleteChain(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("delete chain: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed documents, got %d", len(removed))
	}
	events, err := st.ListEvents(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("chain should be empty, got %d events", len(events))
	}
}

func TestEnsureCourtCaseIdempotent(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)
	ctx := context.Background()

	first, err := st.EnsureCourtCase(ctx, &chain.CourtCase{
		CaseID:  c.ID,
		Court:   "1er Juzgado Civil de Santiago",
		Caption: "Acme con Deudor",
		Docket:  "C-1234-2026",
	})
	if err != nil {
		t.Fatalf("ensure court case: %v", err)
	}
	second, err := st.EnsureCourtCase(ctx, &chain.CourtCase{
		CaseID: c.ID,
		Court:  "otro juzgado",
	})
	if err != nil {
		t.Fatalf("ensure court case again: %v", err)
	}
	if second.ID != first.ID || second.Court != first.Court {
		t.Fatalf("second resolve must return the existing aggregate: %+v vs %+v", first, second)
	}
}

func TestGetCaseNotFound(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.GetCase(context.Background(), "missing"); !errors.Is(err, chain.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestUpdateCaseStatus(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)
	ctx := context.Background()

	if err := st.UpdateCaseStatus(ctx, c.ID, chain.CaseActive); err != nil {
		t.Fatalf("update status: %v", err)
	}
	reloaded, err := st.GetCase(ctx, c.ID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if reloaded.Status != chain.CaseActive {
		t.Fatalf("expected active status, got %s", reloaded.Status)
	}
	if err := st.UpdateCaseStatus(ctx, "missing", chain.CaseActive); !errors.Is(err, chain.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestSimulatedChainIsIndependent(t *testing.T) {
	st := newTestStore(t)
	c := newTestCase(t, st)
	ctx := context.Background()

	appendEvent(t, st, c.ID, chain.EventDemandStart, nil, `{}`)

	// A simulated root coexists with the real one: the open-tail invariant
	// is scoped per (case, simulated) chain.
	sim := &chain.CaseEvent{CaseID: c.ID, Type: chain.EventDemandStart, Simulated: true}
	if _, _, err := st.AppendEvent(ctx, sim, nil, nil); err != nil {
		t.Fatalf("simulated root rejected: %v", err)
	}
	real, err := st.ListEvents(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("list real chain: %v", err)
	}
	simulated, err := st.ListEvents(ctx, c.ID, true)
	if err != nil {
		t.Fatalf("list simulated chain: %v", err)
	}
	if len(real) != 1 || len(simulated) != 1 {
		t.Fatalf("chains not independent: real=%d simulated=%d", len(real), len(simulated))
	}
}
