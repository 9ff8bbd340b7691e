package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/vialegal/docket/internal/llm"
	"github.com/vialegal/docket/internal/record"
)

// routingProvider answers by schema name, independent of call order, since
// section tasks run concurrently.
type routingProvider struct {
	mu      sync.Mutex
	handler func(req llm.Request) (string, error)
	calls   map[string]int
}

func newRoutingProvider(handler func(req llm.Request) (string, error)) *routingProvider {
	return &routingProvider{handler: handler, calls: make(map[string]int)}
}

func (p *routingProvider) Generate(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	p.mu.Lock()
	p.calls[req.SchemaName]++
	p.mu.Unlock()
	out, err := p.handler(req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

func (p *routingProvider) Name() string { return "routing" }

func (p *routingProvider) callCount(schema string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[schema]
}

func goodHandler(req llm.Request) (string, error) {
	return `{"feedback":"ok","status":"good","score":1}`, nil
}

func fullBrief() *record.LegalBrief {
	return &record.LegalBrief{
		Header:             "header",
		Summary:            "summary",
		Court:              "1er Juzgado Civil",
		Opening:            "opening",
		Arguments:          []string{"first argument", "second argument"},
		MainRequest:        "grant the writ",
		AdditionalRequests: []string{"costs"},
	}
}

func sectionByName(t *testing.T, v Verdict, name string) SectionAnalysis {
	t.Helper()
	for _, s := range v.Sections {
		if s.Section == name {
			return s
		}
	}
	t.Fatalf("section %q missing from verdict: %+v", name, v.Sections)
	return SectionAnalysis{}
}

func TestAnalyzeSurplusInputItemTagged(t *testing.T) {
	provider := newRoutingProvider(goodHandler)
	input := fullBrief()
	input.Arguments = []string{"first", "second", "invented third"}
	control := fullBrief()

	verdict, err := New(provider).Analyze(context.Background(), input, control)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	args := sectionByName(t, verdict, "arguments")
	if args.Status != StatusError {
		t.Fatalf("surplus item must force error status, got %s", args.Status)
	}
	if !hasTag(args.Tags, TagFalseInformation) {
		t.Fatalf("expected false_information tag, got %v", args.Tags)
	}
	// Only the paired items reach the model.
	if got := provider.callCount("item_analysis"); got != 2 {
		t.Fatalf("expected 2 item calls, got %d", got)
	}
}

func TestAnalyzeMissingControlItemTagged(t *testing.T) {
	provider := newRoutingProvider(goodHandler)
	input := fullBrief()
	input.Arguments = []string{"first"}
	control := fullBrief()

	verdict, err := New(provider).Analyze(context.Background(), input, control)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	args := sectionByName(t, verdict, "arguments")
	if !hasTag(args.Tags, TagMissingInfo) {
		t.Fatalf("expected missing_info tag, got %v", args.Tags)
	}
	if args.Status != StatusError {
		t.Fatalf("missing item must force error status, got %s", args.Status)
	}
}

func TestAnalyzeEmptySectionSkipsModel(t *testing.T) {
	provider := newRoutingProvider(goodHandler)
	input := fullBrief()
	input.Summary = ""

	verdict, err := New(provider).Analyze(context.Background(), input, fullBrief())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	summary := sectionByName(t, verdict, "summary")
	if summary.Status != StatusError || summary.Score != 0 {
		t.Fatalf("empty section must be a fixed error analysis: %+v", summary)
	}
	// Six non-list sections, one of them empty.
	if got := provider.callCount("section_analysis"); got != 5 {
		t.Fatalf("expected 5 section calls, got %d", got)
	}
}

func TestAnalyzeSynthesisEnforcesWorstStatusAndMeanScore(t *testing.T) {
	provider := newRoutingProvider(func(req llm.Request) (string, error) {
		// The model's own overall verdict disagrees; the computed mean and
		// worst status must win.
		if req.SchemaName == "overall_analysis" {
			return `{"feedback":"looks great","status":"good","score":0.99}`, nil
		}
		return `{"feedback":"ok","status":"good","score":1}`, nil
	})
	input := fullBrief()
	input.Summary = "" // one error section, score 0

	verdict, err := New(provider).Analyze(context.Background(), input, fullBrief())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if verdict.Overall == nil {
		t.Fatal("expected an overall analysis")
	}
	if verdict.Overall.Status != StatusError {
		t.Fatalf("overall status must be the worst section status, got %s", verdict.Overall.Status)
	}
	want := 6.0 / 7.0
	if diff := verdict.Overall.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("overall score must be the section mean %f, got %f", want, verdict.Overall.Score)
	}
	if verdict.Overall.Feedback != "looks great" {
		t.Fatalf("model feedback should be kept: %q", verdict.Overall.Feedback)
	}
}

func TestAnalyzeSynthesisFailureDegrades(t *testing.T) {
	provider := newRoutingProvider(func(req llm.Request) (string, error) {
		if req.SchemaName == "overall_analysis" {
			return "", fmt.Errorf("model unavailable")
		}
		return `{"feedback":"ok","status":"good","score":1}`, nil
	})

	verdict, err := New(provider).Analyze(context.Background(), fullBrief(), fullBrief())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if verdict.Overall != nil {
		t.Fatalf("failed synthesis must leave no overall analysis: %+v", verdict.Overall)
	}
	if len(verdict.Sections) != 7 {
		t.Fatalf("per-section results must survive, got %d", len(verdict.Sections))
	}
}

func TestAnalyzeToleratesSectionFailures(t *testing.T) {
	provider := newRoutingProvider(func(req llm.Request) (string, error) {
		if req.SchemaName == "section_analysis" {
			return "", fmt.Errorf("model unavailable")
		}
		return `{"feedback":"ok","status":"good","score":1}`, nil
	})

	// The list section still succeeds, so the verdict is usable.
	verdict, err := New(provider).Analyze(context.Background(), fullBrief(), fullBrief())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(verdict.Sections) != 1 || verdict.Sections[0].Section != "arguments" {
		t.Fatalf("expected only the arguments section to survive: %+v", verdict.Sections)
	}
}

func TestAnalyzeAllSectionsFailed(t *testing.T) {
	provider := newRoutingProvider(func(req llm.Request) (string, error) {
		return "", fmt.Errorf("model unavailable")
	})
	if _, err := New(provider).Analyze(context.Background(), fullBrief(), fullBrief()); err == nil {
		t.Fatal("expected error when every section analysis fails")
	}
}

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
