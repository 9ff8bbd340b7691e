// Package manager owns the mutating path of a case: predecessor gating,
// blob persistence, the append transaction and suggestion creation.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vialegal/docket/internal/blob"
	"github.com/vialegal/docket/internal/chain"
	"github.com/vialegal/docket/internal/common"
	"github.com/vialegal/docket/internal/record"
	"github.com/vialegal/docket/internal/store"
	"github.com/vialegal/docket/internal/suggest"
)

// Upload is the raw file a processed record was extracted from. It becomes
// the event's annex blob.
type Upload struct {
	Filename string
	Data     []byte
}

type Manager struct {
	store      *store.Store
	blobs      blob.Storage
	suggester  *suggest.TwoStage
	dispatcher *suggest.Dispatcher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(st *store.Store, blobs blob.Storage, suggester *suggest.TwoStage, dispatcher *suggest.Dispatcher) *Manager {
	return &Manager{
		store:      st,
		blobs:      blobs,
		suggester:  suggester,
		dispatcher: dispatcher,
		locks:      make(map[string]*sync.Mutex),
	}
}

// caseLock serializes mutations per case. The chain invariants are also
// enforced by the store's unique index, so the lock is about clean error
// reporting, not correctness.
func (m *Manager) caseLock(caseID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[caseID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[caseID] = l
	}
	return l
}

// Process attaches an extracted record to a case chain: gate on the
// required predecessor, resolve the court-case aggregate, then append the
// event with its document and annex blob in one transaction. The uploads
// are persisted under the event's deterministic annex keys before the
// commit; on rollback they are removed again.
func (m *Manager) Process(ctx context.Context, caseID string, simulated bool, info record.Information, uploads []Upload) (*chain.CaseEvent, *chain.Document, error) {
	lock := m.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()
	return m.process(ctx, caseID, simulated, info, uploads)
}

func (m *Manager) process(ctx context.Context, caseID string, simulated bool, info record.Information, uploads []Upload) (*chain.CaseEvent, *chain.Document, error) {
	logger := common.Logger()
	if _, err := m.store.GetCase(ctx, caseID); err != nil {
		return nil, nil, err
	}

	eventType := chain.EventTypeForKind(info.Kind())
	ev := &chain.CaseEvent{
		CaseID:    caseID,
		Type:      eventType,
		Simulated: simulated,
	}
	if required, ok := eventType.Predecessor(); ok {
		pred, err := m.store.FindPredecessor(ctx, caseID, simulated, required)
		if err != nil {
			return nil, nil, err
		}
		ev.PreviousEventID = &pred.ID
	}

	// Resolved inside the append transaction, so a rejected append leaves
	// no aggregate behind.
	var courtCase *chain.CourtCase
	if bearer, ok := info.(record.CourtBearer); ok {
		ci := bearer.CourtInfo()
		courtCase = &chain.CourtCase{
			CaseID:    caseID,
			Simulated: simulated,
			Court:     ci.Court,
			Caption:   ci.Caption,
			Docket:    ci.Docket,
		}
	}
	ev.Source, ev.Target = eventParties(info)

	content, err := record.Encode(info)
	if err != nil {
		return nil, nil, err
	}
	ev.Content = content

	var savedKeys []string
	ev, doc, err := m.store.AppendEvent(ctx, ev, courtCase, func(eventID int64) (*chain.Document, error) {
		key := ""
		for n, up := range uploads {
			k := blob.AnnexKey(caseID, eventID, n)
			if err := m.blobs.Save(ctx, k, up.Data); err != nil {
				return nil, fmt.Errorf("manager: save annex: %w", err)
			}
			savedKeys = append(savedKeys, k)
			if n == 0 {
				key = k
			}
		}
		return &chain.Document{
			EventID:    eventID,
			Type:       info.Kind(),
			Content:    content,
			StorageKey: key,
		}, nil
	})
	if err != nil {
		for _, k := range savedKeys {
			if derr := m.blobs.Delete(ctx, k); derr != nil {
				logger.Warn("manager: orphaned annex blob", "key", k, "error", derr)
			}
		}
		return nil, nil, err
	}
	logger.Info("manager: event appended", "case", caseID, "event", ev.ID, "type", ev.Type, "simulated", simulated)
	return ev, doc, nil
}

// CreateSuggestions runs the two-stage suggestion engine for a newly
// attached filing and persists the drafted follow-ups. Without a resolved
// demand document on the chain there is nothing to respond to and the
// result is empty.
func (m *Manager) CreateSuggestions(ctx context.Context, ev *chain.CaseEvent, info record.Information) ([]chain.CaseEventSuggestion, error) {
	logger := common.Logger()
	demandDoc, err := m.store.LatestResolvedDemandDocument(ctx, ev.CaseID, ev.Simulated)
	if err != nil {
		return nil, err
	}
	if demandDoc == nil {
		logger.Info("manager: no resolved demand, no suggestions possible", "case", ev.CaseID, "event", ev.ID)
		return []chain.CaseEventSuggestion{}, nil
	}
	filingJSON, err := record.Encode(info)
	if err != nil {
		return nil, err
	}
	suggestions, err := m.suggester.SuggestWithFallbacks(ctx, filingJSON, demandDoc.Content)
	if err != nil {
		return nil, err
	}
	if len(suggestions) == 0 {
		return []chain.CaseEventSuggestion{}, nil
	}

	var control record.Sectioned
	if demand, err := demandDoc.Decode(); err != nil {
		logger.Warn("manager: decode demand for control failed", "error", err)
	} else if sectioned, ok := demand.(record.Sectioned); ok {
		control = sectioned
	}
	return m.dispatcher.Dispatch(ctx, ev.ID, suggestions, filingJSON, json.RawMessage(demandDoc.Content), control, m.store)
}

// ClearFutureEvents deletes every event chained after the given one, along
// with their documents, suggestions and annex blobs.
func (m *Manager) ClearFutureEvents(ctx context.Context, eventID int64) error {
	ev, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	lock := m.caseLock(ev.CaseID)
	lock.Lock()
	defer lock.Unlock()

	removed, err := m.store.ClearFutureEvents(ctx, eventID)
	if err != nil {
		return err
	}
	m.deleteBlobs(ctx, removed)
	return nil
}

// Resimulate rebuilds the case's simulated chain as a copy of the real
// chain up to and including the anchor event. The simulated chain becomes
// a sandbox for exploring alternative futures without touching the record.
func (m *Manager) Resimulate(ctx context.Context, anchorEventID int64) ([]chain.CaseEvent, error) {
	anchor, err := m.store.GetEvent(ctx, anchorEventID)
	if err != nil {
		return nil, err
	}
	if anchor.Simulated {
		return nil, fmt.Errorf("manager: anchor %d is already simulated: %w", anchorEventID, chain.ErrChainInconsistent)
	}
	lock := m.caseLock(anchor.CaseID)
	lock.Lock()
	defer lock.Unlock()

	removed, err := m.store.DeleteChain(ctx, anchor.CaseID, true)
	if err != nil {
		return nil, err
	}
	m.deleteBlobs(ctx, removed)

	real, err := m.store.ListEvents(ctx, anchor.CaseID, false)
	if err != nil {
		return nil, err
	}
	var replayed []chain.CaseEvent
	for _, src := range real {
		if src.ID > anchor.ID {
			break
		}
		info, err := record.Decode(record.Kind(kindForEvent(src)), src.Content)
		if err != nil {
			return replayed, fmt.Errorf("manager: replay decode event %d: %w", src.ID, err)
		}
		ev, _, err := m.process(ctx, anchor.CaseID, true, info, nil)
		if err != nil {
			return replayed, fmt.Errorf("manager: replay event %d: %w", src.ID, err)
		}
		replayed = append(replayed, *ev)
	}
	common.Logger().Info("manager: chain resimulated", "case", anchor.CaseID, "anchor", anchor.ID, "events", len(replayed))
	return replayed, nil
}

func (m *Manager) deleteBlobs(ctx context.Context, docs []chain.Document) {
	logger := common.Logger()
	for _, doc := range docs {
		if doc.StorageKey == "" {
			continue
		}
		if err := m.blobs.Delete(ctx, doc.StorageKey); err != nil {
			logger.Warn("manager: delete blob failed", "key", doc.StorageKey, "error", err)
		}
	}
}

// Events returns one chain in append order.
func (m *Manager) Events(ctx context.Context, caseID string, simulated bool) ([]chain.CaseEvent, error) {
	return m.store.ListEvents(ctx, caseID, simulated)
}

func eventParties(info record.Information) (source, target string) {
	inst, ok := info.(record.Instrument)
	if !ok {
		if d, ok := info.(*record.DemandText); ok {
			return firstName(d.Creditors), firstName(d.Debtors)
		}
		return "", ""
	}
	creditors, debtors := inst.InstrumentParties()
	return firstName(creditors), firstName(debtors)
}

func firstName(parties []record.Party) string {
	if len(parties) == 0 {
		return ""
	}
	return parties[0].Name
}

func kindForEvent(ev chain.CaseEvent) string {
	switch ev.Type {
	case chain.EventDemandStart:
		return string(record.KindDemandText)
	case chain.EventDispatchResolution:
		return string(record.KindDispatchResolution)
	case chain.EventExceptions:
		return string(record.KindExceptions)
	case chain.EventFraudReport:
		return string(record.KindFraudReport)
	}
	return string(ev.Type)
}
