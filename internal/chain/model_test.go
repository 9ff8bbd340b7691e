package chain

import (
	"errors"
	"testing"

	"github.com/vialegal/docket/internal/record"
)

func TestPredecessorTable(t *testing.T) {
	if _, ok := EventDemandStart.Predecessor(); ok {
		t.Fatal("demand_start is a chain root")
	}
	cases := []struct {
		event, want EventType
	}{
		{EventDispatchResolution, EventDemandStart},
		{EventExceptions, EventDispatchResolution},
		{EventFraudReport, EventExceptions},
	}
	for _, tc := range cases {
		got, ok := tc.event.Predecessor()
		if !ok || got != tc.want {
			t.Fatalf("%s predecessor = %s (%v), want %s", tc.event, got, ok, tc.want)
		}
	}
}

func TestEventTypeForKind(t *testing.T) {
	cases := []struct {
		kind record.Kind
		want EventType
	}{
		{record.KindBill, EventDemandStart},
		{record.KindPromissoryNote, EventDemandStart},
		{record.KindDemandText, EventDemandStart},
		{record.KindDispatchResolution, EventDispatchResolution},
		{record.KindExceptions, EventExceptions},
		{record.KindFraudReport, EventFraudReport},
	}
	for _, tc := range cases {
		if got := EventTypeForKind(tc.kind); got != tc.want {
			t.Fatalf("EventTypeForKind(%s) = %s, want %s", tc.kind, got, tc.want)
		}
	}
}

func TestPredecessorErrorMessage(t *testing.T) {
	err := &PredecessorError{Required: EventDispatchResolution}
	if got := err.Error(); got != "Case does not have unresolved dispatch resolution events." {
		t.Fatalf("unexpected message: %q", got)
	}
	if !errors.Is(err, ErrNoPredecessor) {
		t.Fatal("missing predecessor should unwrap to ErrNoPredecessor")
	}
	resolved := &PredecessorError{Required: EventDemandStart, Resolved: true}
	if !errors.Is(resolved, ErrPredecessorResolved) {
		t.Fatal("resolved predecessor should unwrap to ErrPredecessorResolved")
	}
	if got := resolved.Error(); got != "Case does not have unresolved demand text events." {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestEventResolved(t *testing.T) {
	ev := &CaseEvent{}
	if ev.Resolved() {
		t.Fatal("open tail must not be resolved")
	}
	next := int64(2)
	ev.NextEventID = &next
	if !ev.Resolved() {
		t.Fatal("linked event must be resolved")
	}
}
