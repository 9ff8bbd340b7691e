package extract

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vialegal/docket/internal/common"
	"github.com/vialegal/docket/internal/llm"
	"github.com/vialegal/docket/internal/prompt"
	"github.com/vialegal/docket/internal/record"
)

// DefaultMergeWorkers bounds the fan-out over independent sub-documents.
const DefaultMergeWorkers = 3

// MergeInput is one independently obtained sub-document (a bill or note file
// uploaded alongside others) and the engine that extracts it.
type MergeInput struct {
	Extractor Extractor
	Path      string
	Text      string
}

// MergeInstruments extracts every sub-document and accumulates their
// list-typed fields (creditors, debtors, claims) into one demand record.
// Sub-documents are independent, so they fan out over a bounded worker pool;
// results are stitched back by input index regardless of completion order.
// When more than one entity lands in the same role list after local
// normalization, one additional unique-ize call asks the model to merge
// same-identity entities.
func MergeInstruments(ctx context.Context, provider llm.Provider, inputs []MergeInput, workers int) (*record.DemandText, *Metrics, error) {
	logger := common.Logger()
	metrics := NewMetrics("merge_instruments")
	if len(inputs) == 0 {
		return nil, metrics, fmt.Errorf("extract: no instruments to merge")
	}
	if workers <= 0 {
		workers = DefaultMergeWorkers
	}

	type result struct {
		info record.Information
		sub  *Metrics
	}
	results := make([]result, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, input := range inputs {
		g.Go(func() error {
			var (
				info record.Information
				sub  *Metrics
				err  error
			)
			if input.Path != "" {
				info, sub, err = input.Extractor.ExtractFile(gctx, input.Path)
			} else {
				info, sub, err = input.Extractor.ExtractText(gctx, input.Text)
			}
			if err != nil {
				return fmt.Errorf("instrument %d: %w", i+1, err)
			}
			results[i] = result{info: info, sub: sub}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, metrics, err
	}

	merged := &record.DemandText{}
	for _, res := range results {
		metrics.Attach(res.sub)
		instrument, ok := res.info.(record.Instrument)
		if !ok {
			return nil, metrics, fmt.Errorf("extract: %s is not an executive instrument", res.info.Kind())
		}
		creditors, debtors := instrument.InstrumentParties()
		merged.Creditors = append(merged.Creditors, creditors...)
		merged.Debtors = append(merged.Debtors, debtors...)
		merged.Claims = append(merged.Claims, instrument.InstrumentClaim())
	}
	merged.Normalize()

	if len(merged.Creditors) > 1 || len(merged.Debtors) > 1 {
		encoded, err := record.Encode(merged)
		if err != nil {
			return nil, metrics, err
		}
		p, err := prompt.Uniqueize(string(encoded))
		if err != nil {
			return nil, metrics, fmt.Errorf("extract: build unique-ize prompt: %w", err)
		}
		start := time.Now()
		deduped, err := llm.Invoke[*record.DemandText](ctx, provider, string(record.KindDemandText), prompt.ExtractionSystem(), p)
		if err != nil {
			return nil, metrics, fmt.Errorf("extract: unique-ize: %w", err)
		}
		metrics.RecordCall(time.Since(start))
		deduped.Normalize()
		merged = deduped
	}

	logger.Debug("extract: instruments merged",
		"instruments", len(inputs),
		"creditors", len(merged.Creditors),
		"debtors", len(merged.Debtors),
		"invocations", metrics.ModelInvocations)
	return merged, metrics, nil
}
