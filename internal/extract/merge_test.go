package extract

import (
	"context"
	"testing"

	"github.com/vialegal/docket/internal/record"
)

func TestMergeInstrumentsLocalDedupe(t *testing.T) {
	// Two bills name the same creditor with differently formatted tax ids.
	// Canonicalization dedupes them locally, so the unique-ize model call
	// must not fire: exactly one extraction call per instrument.
	provider := &scriptedProvider{responses: []string{
		`{"number":"F-1","amount":500,"creditors":[{"name":"Acme SpA","identifier":"76.123.456-7"}],"debtors":[{"name":"Deudor Ltda"}]}`,
		`{"number":"F-2","amount":700,"creditors":[{"name":"Acme SpA","identifier":"76123456-7"}],"debtors":[{"name":"Deudor Ltda"}]}`,
	}}
	engine := New(provider, nil, func() *record.Bill { return &record.Bill{} })
	inputs := []MergeInput{
		{Extractor: engine.Erased(), Text: "first bill"},
		{Extractor: engine.Erased(), Text: "second bill"},
	}

	merged, metrics, err := MergeInstruments(context.Background(), provider, inputs, 1)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if got := provider.callCount(); got != 2 {
		t.Fatalf("expected 2 model calls, got %d", got)
	}
	if metrics.ModelInvocations != 2 {
		t.Fatalf("expected 2 invocations in metrics, got %d", metrics.ModelInvocations)
	}
	if len(merged.Creditors) != 1 {
		t.Fatalf("expected deduped creditor list, got %d entries", len(merged.Creditors))
	}
	if len(merged.Debtors) != 1 {
		t.Fatalf("expected deduped debtor list, got %d entries", len(merged.Debtors))
	}
	if len(merged.Claims) != 2 {
		t.Fatalf("expected one claim per instrument, got %d", len(merged.Claims))
	}
	if merged.Claims[0].Amount != 500 || merged.Claims[1].Amount != 700 {
		t.Fatalf("claims out of input order: %+v", merged.Claims)
	}
}

func TestMergeInstrumentsUniqueizeCall(t *testing.T) {
	// Distinct creditors survive local normalization, so one extra model
	// call asks for entity-level deduplication and its result wins.
	provider := &scriptedProvider{responses: []string{
		`{"number":"F-1","creditors":[{"name":"Acme SpA"}]}`,
		`{"number":"F-2","creditors":[{"name":"ACME Sociedad por Acciones"}]}`,
		`{"creditors":[{"name":"Acme SpA"}],"claims":[{"instrument":"bill","number":"F-1"},{"instrument":"bill","number":"F-2"}]}`,
	}}
	engine := New(provider, nil, func() *record.Bill { return &record.Bill{} })
	inputs := []MergeInput{
		{Extractor: engine.Erased(), Text: "first bill"},
		{Extractor: engine.Erased(), Text: "second bill"},
	}

	merged, metrics, err := MergeInstruments(context.Background(), provider, inputs, 1)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if got := provider.callCount(); got != 3 {
		t.Fatalf("expected 3 model calls (2 extractions + unique-ize), got %d", got)
	}
	if metrics.ModelInvocations != 3 {
		t.Fatalf("expected 3 invocations in metrics, got %d", metrics.ModelInvocations)
	}
	if len(merged.Creditors) != 1 || merged.Creditors[0].Name != "Acme SpA" {
		t.Fatalf("unique-ize result not applied: %+v", merged.Creditors)
	}
}

func TestMergeInstrumentsEmptyInput(t *testing.T) {
	if _, _, err := MergeInstruments(context.Background(), &scriptedProvider{}, nil, 1); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestMergeInstrumentsFailurePropagates(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"number":"F-1"}`}}
	engine := New(provider, nil, func() *record.Bill { return &record.Bill{} })
	inputs := []MergeInput{
		{Extractor: engine.Erased(), Text: "first bill"},
		{Extractor: engine.Erased(), Text: "second bill"},
	}
	if _, _, err := MergeInstruments(context.Background(), provider, inputs, 1); err == nil {
		t.Fatal("expected error when one extraction fails")
	}
}
