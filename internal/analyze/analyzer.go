// Package analyze fans a structured record out into independent per-section
// judgments and reconciles them into one verdict.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/vialegal/docket/internal/common"
	"github.com/vialegal/docket/internal/llm"
	"github.com/vialegal/docket/internal/prompt"
	"github.com/vialegal/docket/internal/record"
)

type Status string

const (
	StatusGood    Status = "good"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

const (
	// TagFalseInformation marks a list item present in the input but absent
	// from the control record.
	TagFalseInformation = "false_information"
	// TagMissingInfo marks a list item present in the control record but
	// absent from the input.
	TagMissingInfo = "missing_info"
)

func worse(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusError:
			return 2
		case StatusWarning:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// Analysis is one judgment: per section, per list item, or overall.
type Analysis struct {
	Feedback string   `json:"feedback"`
	Tags     []string `json:"tags,omitempty"`
	Status   Status   `json:"status"`
	Score    float64  `json:"score"`
}

// SectionAnalysis ties an Analysis to its section name.
type SectionAnalysis struct {
	Section string `json:"section"`
	Analysis
}

// Verdict is the reconciled outcome. Overall is nil when the synthesis call
// failed; per-section results are still usable.
type Verdict struct {
	Sections []SectionAnalysis `json:"sections"`
	Overall  *Analysis         `json:"overall,omitempty"`
}

const analysisSystem = "You are a senior litigator reviewing a filing before submission. " +
	"Respond only with the requested JSON."

// Analyzer runs per-section judgment calls against an optional control
// record. Sections are mutually independent and judged concurrently; the
// only synchronization point is the fan-in barrier before synthesis.
type Analyzer struct {
	provider llm.Provider
}

func New(provider llm.Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// Analyze decomposes input into its fixed section set, judges each section
// concurrently (pairing control sections positionally), and synthesizes one
// overall analysis. A failed section task is logged and skipped; a failed
// synthesis degrades to a verdict without an overall analysis.
func (a *Analyzer) Analyze(ctx context.Context, input record.Sectioned, control record.Sectioned) (Verdict, error) {
	logger := common.Logger()
	sections := input.Sections()
	if len(sections) == 0 {
		return Verdict{}, fmt.Errorf("analyze: record has no sections")
	}
	var controls []record.Section
	if control != nil {
		controls = control.Sections()
	}

	results := make([]*SectionAnalysis, len(sections))
	var wg sync.WaitGroup
	for i, section := range sections {
		var counterpart *record.Section
		if i < len(controls) {
			counterpart = &controls[i]
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			analysis, err := a.analyzeSection(ctx, section, counterpart)
			if err != nil {
				logger.Warn("analyze: section failed", "section", section.Name, "error", err)
				return
			}
			results[i] = &SectionAnalysis{Section: section.Name, Analysis: analysis}
		}()
	}
	wg.Wait()

	verdict := Verdict{}
	for _, res := range results {
		if res != nil {
			verdict.Sections = append(verdict.Sections, *res)
		}
	}
	if len(verdict.Sections) == 0 {
		return verdict, fmt.Errorf("analyze: every section analysis failed")
	}

	verdict.Overall = a.synthesize(ctx, verdict.Sections)
	return verdict, nil
}

func (a *Analyzer) analyzeSection(ctx context.Context, section record.Section, control *record.Section) (Analysis, error) {
	if section.List {
		return a.analyzeList(ctx, section, control)
	}
	// An empty section short-circuits to a fixed error analysis without
	// invoking the model.
	if section.Content == "" {
		return Analysis{
			Feedback: fmt.Sprintf("section %q is empty", section.Name),
			Status:   StatusError,
			Score:    0,
		}, nil
	}
	controlContent := ""
	if control != nil {
		controlContent = control.Content
	}
	p, err := prompt.SectionAnalysis(section.Name, section.Content, controlContent)
	if err != nil {
		return Analysis{}, err
	}
	result, err := llm.Invoke[*Analysis](ctx, a.provider, "section_analysis", analysisSystem, p)
	if err != nil {
		return Analysis{}, err
	}
	return *result, nil
}

// analyzeList judges each list item against its positional counterpart in
// the control list. Surplus input items are flagged false_information;
// surplus control items are flagged missing_info.
func (a *Analyzer) analyzeList(ctx context.Context, section record.Section, control *record.Section) (Analysis, error) {
	if len(section.Items) == 0 && (control == nil || len(control.Items) == 0) {
		return Analysis{
			Feedback: fmt.Sprintf("section %q is empty", section.Name),
			Status:   StatusError,
			Score:    0,
		}, nil
	}
	var controlItems []string
	if control != nil {
		controlItems = control.Items
	}

	agg := Analysis{Status: StatusGood}
	judged := 0
	total := 0.0
	count := len(section.Items)
	if len(controlItems) > count {
		count = len(controlItems)
	}
	for i := 0; i < count; i++ {
		switch {
		case i >= len(controlItems):
			agg.Tags = append(agg.Tags, TagFalseInformation)
			agg.Status = worse(agg.Status, StatusError)
			agg.Feedback += fmt.Sprintf("item %d has no counterpart in the control copy; ", i+1)
		case i >= len(section.Items):
			agg.Tags = append(agg.Tags, TagMissingInfo)
			agg.Status = worse(agg.Status, StatusError)
			agg.Feedback += fmt.Sprintf("control item %d is missing from the filing; ", i+1)
		default:
			p, err := prompt.ItemAnalysis(section.Name, section.Items[i], controlItems[i])
			if err != nil {
				return Analysis{}, err
			}
			item, err := llm.Invoke[*Analysis](ctx, a.provider, "item_analysis", analysisSystem, p)
			if err != nil {
				return Analysis{}, err
			}
			agg.Tags = append(agg.Tags, item.Tags...)
			agg.Status = worse(agg.Status, item.Status)
			agg.Feedback += item.Feedback + "; "
			total += item.Score
			judged++
		}
	}
	if judged > 0 {
		agg.Score = total / float64(judged)
	}
	return agg, nil
}

// synthesize issues the final reconciliation call. The required conclusion
// is the mean of per-section scores with the worst per-section status; those
// are enforced locally even when the model strays. A failed call degrades to
// no overall verdict.
func (a *Analyzer) synthesize(ctx context.Context, sections []SectionAnalysis) *Analysis {
	logger := common.Logger()
	mean := 0.0
	status := StatusGood
	for _, s := range sections {
		mean += s.Score
		status = worse(status, s.Status)
	}
	mean /= float64(len(sections))

	encoded, err := json.Marshal(sections)
	if err != nil {
		logger.Warn("analyze: synthesis skipped", "error", err)
		return nil
	}
	p, err := prompt.Synthesis(string(encoded), strconv.FormatFloat(mean, 'f', 2, 64), string(status))
	if err != nil {
		logger.Warn("analyze: synthesis skipped", "error", err)
		return nil
	}
	overall, err := llm.Invoke[*Analysis](ctx, a.provider, "overall_analysis", analysisSystem, p)
	if err != nil {
		logger.Warn("analyze: synthesis failed, verdict has no overall analysis", "error", err)
		return nil
	}
	overall.Score = mean
	overall.Status = status
	return overall
}
