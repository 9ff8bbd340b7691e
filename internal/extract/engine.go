// Package extract drives the chunked extraction pipeline: a document is
// split into bounded chunks and replayed through the structured-generation
// model into one normalized record.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/vialegal/docket/internal/common"
	"github.com/vialegal/docket/internal/llm"
	"github.com/vialegal/docket/internal/loader"
	"github.com/vialegal/docket/internal/prompt"
	"github.com/vialegal/docket/internal/record"
)

// PageFilter can drop pages before chunking, e.g. boilerplate trailing pages
// once a known marker section has been seen.
type PageFilter func([]loader.Page) []loader.Page

// Engine extracts one record kind. The chunk loop is strictly sequential:
// each chunk's prompt depends on the previous chunk's output, so the engine
// never parallelizes internally.
type Engine[T record.Information] struct {
	provider  llm.Provider
	ldr       loader.DocumentLoader
	newRecord func() T
	splitter  Splitter
	filter    PageFilter
	label     string
}

type Option[T record.Information] func(*Engine[T])

// WithChunkSize overrides the chunk character budget.
func WithChunkSize[T record.Information](size int) Option[T] {
	return func(e *Engine[T]) { e.splitter.Size = size }
}

// WithPageFilter installs a page filter run before chunking.
func WithPageFilter[T record.Information](f PageFilter) Option[T] {
	return func(e *Engine[T]) { e.filter = f }
}

func New[T record.Information](provider llm.Provider, ldr loader.DocumentLoader, newRecord func() T, opts ...Option[T]) *Engine[T] {
	e := &Engine[T]{
		provider:  provider,
		ldr:       ldr,
		newRecord: newRecord,
		label:     string(newRecord().Kind()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Kind reports the record kind this engine extracts.
func (e *Engine[T]) Kind() record.Kind {
	return e.newRecord().Kind()
}

// ExtractFile loads page text through the document loader and extracts it.
func (e *Engine[T]) ExtractFile(ctx context.Context, path string) (T, *Metrics, error) {
	metrics := NewMetrics(e.label)
	var zero T
	if e.ldr == nil {
		return zero, metrics, fmt.Errorf("extract: no document loader configured")
	}
	pages, err := e.ldr.Load(ctx, path)
	if err != nil {
		return zero, metrics, fmt.Errorf("extract: load %s: %w", path, err)
	}
	if e.filter != nil {
		pages = e.filter(pages)
	}
	return e.extract(ctx, loader.Concat(pages), metrics)
}

// ExtractText extracts a record from raw text.
func (e *Engine[T]) ExtractText(ctx context.Context, text string) (T, *Metrics, error) {
	return e.extract(ctx, text, NewMetrics(e.label))
}

// extract runs the full-state replay loop: every chunk call returns the
// entire updated record, which replaces the accumulated one wholesale. A
// failed model call propagates; retry belongs to the caller.
func (e *Engine[T]) extract(ctx context.Context, text string, metrics *Metrics) (T, *Metrics, error) {
	logger := common.Logger()
	var zero T

	chunks := e.splitter.Split(text)
	if len(chunks) == 0 {
		return zero, metrics, fmt.Errorf("extract: empty document")
	}
	logger.Debug("extract: starting", "kind", e.label, "chunks", len(chunks))

	accumulated := e.newRecord()
	accumulatedJSON := ""
	for i, chunk := range chunks {
		p, err := prompt.Extraction(e.label, chunk, accumulatedJSON)
		if err != nil {
			return zero, metrics, fmt.Errorf("extract: build prompt: %w", err)
		}
		start := time.Now()
		updated, err := llm.Invoke[T](ctx, e.provider, e.label, prompt.ExtractionSystem(), p)
		if err != nil {
			return zero, metrics, fmt.Errorf("extract: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		metrics.RecordCall(time.Since(start))

		updated.Normalize()
		accumulated = updated
		encoded, err := record.Encode(accumulated)
		if err != nil {
			return zero, metrics, err
		}
		accumulatedJSON = string(encoded)
	}
	logger.Debug("extract: finished", "kind", e.label, "invocations", metrics.ModelInvocations, "elapsed", metrics.ElapsedTime)
	return accumulated, metrics, nil
}

// Extractor is the type-erased engine surface the event pipeline consumes.
type Extractor interface {
	Kind() record.Kind
	ExtractFile(ctx context.Context, path string) (record.Information, *Metrics, error)
	ExtractText(ctx context.Context, text string) (record.Information, *Metrics, error)
}

type erased[T record.Information] struct {
	engine *Engine[T]
}

// Erased boxes the generic engine behind the Extractor interface.
func (e *Engine[T]) Erased() Extractor {
	return erased[T]{engine: e}
}

func (w erased[T]) Kind() record.Kind {
	return w.engine.Kind()
}

func (w erased[T]) ExtractFile(ctx context.Context, path string) (record.Information, *Metrics, error) {
	info, metrics, err := w.engine.ExtractFile(ctx, path)
	if err != nil {
		return nil, metrics, err
	}
	return info, metrics, nil
}

func (w erased[T]) ExtractText(ctx context.Context, text string) (record.Information, *Metrics, error) {
	info, metrics, err := w.engine.ExtractText(ctx, text)
	if err != nil {
		return nil, metrics, err
	}
	return info, metrics, nil
}
