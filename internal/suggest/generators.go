package suggest

import (
	"context"
	"fmt"

	"github.com/vialegal/docket/internal/llm"
	"github.com/vialegal/docket/internal/prompt"
	"github.com/vialegal/docket/internal/record"
)

const generationSystem = "You are drafting a court filing on behalf of the creditor. " +
	"Write formal legal prose and respond with structured JSON only."

// Generator drafts the document backing one suggestion type. The context
// JSON carries the triggering filing and the originating demand record.
type Generator interface {
	Name() string
	Generate(ctx context.Context, contextJSON []byte) (*record.LegalBrief, error)
}

// BriefGenerator drafts a LegalBrief through a single model call, steered
// by a per-type hint.
type BriefGenerator struct {
	provider llm.Provider
	name     string
	hint     string
}

func NewBriefGenerator(provider llm.Provider, name, hint string) *BriefGenerator {
	return &BriefGenerator{provider: provider, name: name, hint: hint}
}

func (g *BriefGenerator) Name() string { return g.name }

func (g *BriefGenerator) Generate(ctx context.Context, contextJSON []byte) (*record.LegalBrief, error) {
	p, err := prompt.Generation(g.name, string(contextJSON), g.hint)
	if err != nil {
		return nil, fmt.Errorf("suggest: generation prompt: %w", err)
	}
	brief, err := llm.Invoke[*record.LegalBrief](ctx, g.provider, "legal_brief", generationSystem, p)
	if err != nil {
		return nil, fmt.Errorf("suggest: generate %s: %w", g.name, err)
	}
	return brief, nil
}
