package suggest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vialegal/docket/internal/analyze"
	"github.com/vialegal/docket/internal/chain"
	"github.com/vialegal/docket/internal/common"
	"github.com/vialegal/docket/internal/llm"
	"github.com/vialegal/docket/internal/record"
)

// SuggestionWriter is the slice of the store the dispatcher needs.
type SuggestionWriter interface {
	InsertSuggestion(ctx context.Context, sg *chain.CaseEventSuggestion) error
}

// Dispatcher maps suggestion types to document generators and persists
// each drafted brief as a stored suggestion. One generator failing is
// logged and skipped; it never blocks the siblings.
type Dispatcher struct {
	generators map[chain.SuggestionType]Generator
	analyzer   *analyze.Analyzer
}

func NewDispatcher(provider llm.Provider) *Dispatcher {
	return &Dispatcher{
		generators: map[chain.SuggestionType]Generator{
			chain.SuggestRespondExceptions: NewBriefGenerator(provider, "Response to exceptions",
				"Rebut each exception raised by the debtor, in the order raised."),
			chain.SuggestCompromise: NewBriefGenerator(provider, "Compromise offer",
				"Propose settlement terms proportionate to the claims."),
			chain.SuggestWithdrawal: NewBriefGenerator(provider, "Withdrawal",
				"Withdraw the demand, reserving the creditor's rights."),
			chain.SuggestCorrection: NewBriefGenerator(provider, "Corrected demand",
				"Re-state the demand fixing the defects identified by the court."),
		},
		analyzer: analyze.New(provider),
	}
}

// Register replaces the generator for a type. Mainly for tests.
func (d *Dispatcher) Register(t chain.SuggestionType, g Generator) {
	d.generators[t] = g
}

type generationContext struct {
	Suggestion Suggestion      `json:"suggestion"`
	Filing     json.RawMessage `json:"filing,omitempty"`
	Demand     json.RawMessage `json:"demand,omitempty"`
}

// Dispatch drafts and persists one document per suggestion. The returned
// rows are the successfully persisted ones, in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, eventID int64, suggestions []Suggestion, filingJSON, demandJSON []byte, control record.Sectioned, w SuggestionWriter) ([]chain.CaseEventSuggestion, error) {
	logger := common.Logger()
	var stored []chain.CaseEventSuggestion
	for _, sg := range suggestions {
		gen, ok := d.generators[sg.Type]
		if !ok {
			logger.Warn("suggest: no generator registered", "type", sg.Type)
			continue
		}
		gc, err := json.Marshal(generationContext{Suggestion: sg, Filing: filingJSON, Demand: demandJSON})
		if err != nil {
			return stored, fmt.Errorf("suggest: marshal context: %w", err)
		}
		brief, err := gen.Generate(ctx, gc)
		if err != nil {
			logger.Error("suggest: generator failed", "type", sg.Type, "error", err)
			continue
		}
		if control != nil && d.analyzer != nil {
			verdict, err := d.analyzer.Analyze(ctx, brief, control)
			if err != nil {
				logger.Warn("suggest: brief analysis failed", "type", sg.Type, "error", err)
			} else if verdict.Overall != nil && verdict.Overall.Status == analyze.StatusError {
				logger.Warn("suggest: discarding low-quality brief", "type", sg.Type, "score", verdict.Overall.Score)
				continue
			}
		}
		content, err := json.Marshal(brief)
		if err != nil {
			return stored, fmt.Errorf("suggest: marshal brief: %w", err)
		}
		row := chain.CaseEventSuggestion{
			EventID: eventID,
			Name:    sg.Name,
			Type:    sg.Type,
			Content: content,
			Score:   sg.Score,
		}
		if err := w.InsertSuggestion(ctx, &row); err != nil {
			logger.Error("suggest: persist suggestion failed", "type", sg.Type, "error", err)
			continue
		}
		stored = append(stored, row)
	}
	return stored, nil
}
