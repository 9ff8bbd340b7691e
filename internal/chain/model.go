// Package chain defines the per-case procedural event chain: an ordered,
// doubly-cross-referenced list of milestones, one chain per (case, simulated)
// pair. Real and simulated timelines never interleave.
package chain

import (
	"encoding/json"
	"time"

	"github.com/vialegal/docket/internal/record"
)

type CaseStatus string

const (
	CaseDraft    CaseStatus = "draft"
	CaseActive   CaseStatus = "active"
	CaseArchived CaseStatus = "archived"
	CaseFinished CaseStatus = "finished"
)

// EventType is a procedural milestone kind.
type EventType string

const (
	EventDemandStart        EventType = "demand_start"
	EventDispatchResolution EventType = "dispatch_resolution"
	EventExceptions         EventType = "exceptions"
	EventFraudReport        EventType = "fraud_report"
)

// predecessors encodes the state machine: an event may only be appended to
// the current unresolved tail of its required predecessor type.
var predecessors = map[EventType]EventType{
	EventDispatchResolution: EventDemandStart,
	EventExceptions:         EventDispatchResolution,
	EventFraudReport:        EventExceptions,
}

// Predecessor returns the required predecessor type, or false for chain
// roots (demand_start).
func (t EventType) Predecessor() (EventType, bool) {
	p, ok := predecessors[t]
	return p, ok
}

// Label is the human-readable name used in error payloads.
func (t EventType) Label() string {
	switch t {
	case EventDemandStart:
		return "demand text"
	case EventDispatchResolution:
		return "dispatch resolution"
	case EventExceptions:
		return "exceptions"
	case EventFraudReport:
		return "fraud report"
	}
	return string(t)
}

// EventTypeForKind maps a document kind to the event it attaches as.
// Instruments (bills, notes) contribute to a demand_start event.
func EventTypeForKind(kind record.Kind) EventType {
	switch kind {
	case record.KindDispatchResolution:
		return EventDispatchResolution
	case record.KindExceptions:
		return EventExceptions
	case record.KindFraudReport:
		return EventFraudReport
	default:
		return EventDemandStart
	}
}

// SuggestionType is a dispatchable follow-up action kind.
type SuggestionType string

const (
	SuggestRespondExceptions SuggestionType = "respond_exceptions"
	SuggestCompromise        SuggestionType = "compromise"
	SuggestWithdrawal        SuggestionType = "withdrawal"
	SuggestCorrection        SuggestionType = "correction"
)

type Case struct {
	ID        string     `db:"id" json:"id"`
	Status    CaseStatus `db:"status" json:"status"`
	Simulated bool       `db:"simulated" json:"simulated"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// CourtCase is the court-side aggregate of a chain, keyed by
// (case_id, simulated) and created from extracted court metadata.
type CourtCase struct {
	ID        int64  `db:"id" json:"id"`
	CaseID    string `db:"case_id" json:"case_id"`
	Simulated bool   `db:"simulated" json:"simulated"`
	Court     string `db:"court" json:"court"`
	Caption   string `db:"caption" json:"caption"`
	Docket    string `db:"docket" json:"docket"`
}

// CaseEvent is one chain milestone. Type, Source, Target and
// PreviousEventID are immutable once created; only the predecessor's
// NextEventID is ever updated, and only once.
type CaseEvent struct {
	ID              int64           `db:"id" json:"id"`
	CaseID          string          `db:"case_id" json:"case_id"`
	Type            EventType       `db:"type" json:"type"`
	Source          string          `db:"source" json:"source,omitempty"`
	Target          string          `db:"target" json:"target,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	PreviousEventID *int64          `db:"previous_event_id" json:"previous_event_id,omitempty"`
	NextEventID     *int64          `db:"next_event_id" json:"next_event_id,omitempty"`
	Simulated       bool            `db:"simulated" json:"simulated"`
	Content         json.RawMessage `db:"content" json:"content,omitempty"`
}

// Resolved reports whether the event already has a successor.
func (e *CaseEvent) Resolved() bool {
	return e.NextEventID != nil
}

// Document is an Information snapshot attached to an event. StorageKey is
// set when the document was sourced from an upload.
type Document struct {
	ID         int64           `db:"id" json:"id"`
	EventID    int64           `db:"event_id" json:"event_id"`
	Type       record.Kind     `db:"type" json:"type"`
	Content    json.RawMessage `db:"content" json:"content"`
	StorageKey string          `db:"storage_key" json:"storage_key,omitempty"`
	Generated  bool            `db:"generated" json:"generated"`
}

// Decode returns the typed record stored in the document content column.
func (d *Document) Decode() (record.Information, error) {
	return record.Decode(d.Type, d.Content)
}

// CaseEventSuggestion is a persisted follow-up action proposal tied to the
// event that triggered it.
type CaseEventSuggestion struct {
	ID         int64           `db:"id" json:"id"`
	EventID    int64           `db:"event_id" json:"event_id"`
	Name       string          `db:"name" json:"name"`
	Type       SuggestionType  `db:"type" json:"type"`
	Content    json.RawMessage `db:"content" json:"content"`
	Score      float64         `db:"score" json:"score"`
	StorageKey string          `db:"storage_key" json:"storage_key,omitempty"`
}
