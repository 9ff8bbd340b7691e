package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vialegal/docket/internal/chain"
	"github.com/vialegal/docket/internal/common"
	"github.com/vialegal/docket/internal/llm"
	"github.com/vialegal/docket/internal/prompt"
)

// Base-rate scores for fallback suggestions. Compromise and withdrawal are
// always legally available to the creditor, so they fill the list when the
// generator stage produces fewer than maxSuggestions.
const (
	BaseRateCompromise = 0.62
	BaseRateWithdrawal = 0.54
)

const maxSuggestions = 3

// minScore is the relevance cutoff applied to generator output.
const minScore = 0.5

// Gate is the cheap classifier verdict that decides whether the expensive
// generator stage runs at all.
type Gate struct {
	RequiresResponse   bool `json:"requires_response"`
	RequiresCompromise bool `json:"requires_compromise"`
	RequiresCorrection bool `json:"requires_correction"`
}

// Open reports whether any follow-up is worth generating.
func (g Gate) Open() bool {
	return g.RequiresResponse || g.RequiresCompromise || g.RequiresCorrection
}

// Suggestion is one proposed follow-up filing, scored by relevance.
type Suggestion struct {
	Type        chain.SuggestionType `json:"type"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Score       float64              `json:"score"`
}

type generated struct {
	Suggestions []Suggestion `json:"suggestions"`
}

const suggestSystem = "You are a litigation strategist advising the creditor's counsel. " +
	"Respond with structured JSON only."

// TwoStage runs the classifier gate before the generator, so filings that
// plainly need no response never pay for the second model call.
type TwoStage struct {
	provider llm.Provider

	compromiseRate float64
	withdrawalRate float64
}

type Option func(*TwoStage)

// WithBaseRates overrides the fallback scores, mainly for tests.
func WithBaseRates(compromise, withdrawal float64) Option {
	return func(t *TwoStage) {
		t.compromiseRate = compromise
		t.withdrawalRate = withdrawal
	}
}

func NewTwoStage(provider llm.Provider, opts ...Option) *TwoStage {
	t := &TwoStage{
		provider:       provider,
		compromiseRate: BaseRateCompromise,
		withdrawalRate: BaseRateWithdrawal,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Suggest classifies the filing against the originating demand and, when
// the gate opens, generates scored follow-up suggestions. Results are
// filtered to score > 0.5, sorted best first and truncated to three. A
// closed gate returns an empty, non-nil slice.
func (t *TwoStage) Suggest(ctx context.Context, filingJSON, demandJSON []byte) ([]Suggestion, error) {
	out, _, err := t.suggest(ctx, filingJSON, demandJSON)
	return out, err
}

// suggest additionally reports whether the gate opened, so callers can tell
// a closed gate apart from an open gate whose candidates were all filtered.
func (t *TwoStage) suggest(ctx context.Context, filingJSON, demandJSON []byte) ([]Suggestion, bool, error) {
	gatePrompt, err := prompt.Classifier(string(filingJSON), string(demandJSON))
	if err != nil {
		return nil, false, fmt.Errorf("suggest: classifier prompt: %w", err)
	}
	gate, err := llm.Invoke[Gate](ctx, t.provider, "filing_gate", suggestSystem, gatePrompt)
	if err != nil {
		return nil, false, fmt.Errorf("suggest: classify filing: %w", err)
	}
	if !gate.Open() {
		common.Logger().Debug("suggest: gate closed, skipping generator")
		return []Suggestion{}, false, nil
	}

	genPrompt, err := prompt.Suggestions(string(filingJSON), string(demandJSON))
	if err != nil {
		return nil, true, fmt.Errorf("suggest: generator prompt: %w", err)
	}
	out, err := llm.Invoke[generated](ctx, t.provider, "filing_suggestions", suggestSystem, genPrompt)
	if err != nil {
		return nil, true, fmt.Errorf("suggest: generate suggestions: %w", err)
	}

	kept := out.Suggestions[:0]
	for _, sg := range out.Suggestions {
		if sg.Score > minScore {
			kept = append(kept, sg)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > maxSuggestions {
		kept = kept[:maxSuggestions]
	}
	if kept == nil {
		kept = []Suggestion{}
	}
	return kept, true, nil
}

// SuggestWithFallbacks appends base-rate compromise and withdrawal entries
// to the generator output whenever the gate opened, even when every
// generated candidate fell below the cutoff, skipping a type the generator
// already proposed. Only a closed gate stays empty.
func (t *TwoStage) SuggestWithFallbacks(ctx context.Context, filingJSON, demandJSON []byte) ([]Suggestion, error) {
	out, open, err := t.suggest(ctx, filingJSON, demandJSON)
	if err != nil {
		return nil, err
	}
	if !open {
		return out, nil
	}
	present := make(map[chain.SuggestionType]bool, len(out))
	for _, sg := range out {
		present[sg.Type] = true
	}
	fillers := []Suggestion{
		{Type: chain.SuggestCompromise, Name: "Compromise offer", Description: "Offer the debtor a negotiated settlement.", Score: t.compromiseRate},
		{Type: chain.SuggestWithdrawal, Name: "Withdrawal", Description: "Withdraw the demand and close the case.", Score: t.withdrawalRate},
	}
	for _, f := range fillers {
		if present[f.Type] {
			continue
		}
		out = append(out, f)
		present[f.Type] = true
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// MarshalContent serializes a suggestion for persistence.
func (s Suggestion) MarshalContent() (json.RawMessage, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("suggest: marshal suggestion: %w", err)
	}
	return raw, nil
}
