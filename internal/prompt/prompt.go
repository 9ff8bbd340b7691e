// Package prompt holds the prompt-construction helpers for every model call
// in the pipeline. All helpers are pure functions from record context to a
// prompt string; the legal wording here is functional scaffolding.
package prompt

import (
	"github.com/tmc/langchaingo/prompts"
)

const extractionSystem = "You are a legal document analyst. Extract the requested facts " +
	"from executive collection case documents. Respond only with the requested JSON."

var extractFirst = prompts.NewPromptTemplate(
	`Extract every fact of the target schema from this fragment of a {{.kind}} document.
Leave unknown fields empty.

Fragment:
{{.chunk}}`,
	[]string{"kind", "chunk"},
)

var extractNext = prompts.NewPromptTemplate(
	`You are continuing the extraction of a {{.kind}} document. Below is the record
accumulated from earlier fragments, followed by the next fragment. Return the
ENTIRE updated record: carry forward every previously established field and
fold in anything the new fragment adds or corrects.

Accumulated record:
{{.accumulated}}

Next fragment:
{{.chunk}}`,
	[]string{"kind", "accumulated", "chunk"},
)

// ExtractionSystem is the system prompt for extraction calls.
func ExtractionSystem() string { return extractionSystem }

// Extraction builds the per-chunk extraction prompt. The accumulated record
// is empty on the first chunk.
func Extraction(kind, chunk, accumulated string) (string, error) {
	if accumulated == "" {
		return extractFirst.Format(map[string]any{"kind": kind, "chunk": chunk})
	}
	return extractNext.Format(map[string]any{"kind": kind, "accumulated": accumulated, "chunk": chunk})
}

var uniqueize = prompts.NewPromptTemplate(
	`The record below was merged from several instruments and may list the same
person or company more than once in a role. Return the ENTIRE record with each
role list deduplicated: entities sharing an identifier are the same entity;
without an identifier, match by name similarity. Keep the most complete name,
and fill missing contact details of an entity from its legal representatives
and vice versa. Change nothing else.

Record:
{{.record}}`,
	[]string{"record"},
)

// Uniqueize builds the cross-instrument entity deduplication prompt.
func Uniqueize(recordJSON string) (string, error) {
	return uniqueize.Format(map[string]any{"record": recordJSON})
}

var sectionAnalysis = prompts.NewPromptTemplate(
	`Judge the "{{.section}}" section of a legal filing. Assess correctness,
completeness and tone. Provide feedback, tags, a status (good, warning or
error) and a score between 0 and 1.

Section content:
{{.content}}
{{if .control}}
Control copy of the same section:
{{.control}}
{{end}}`,
	[]string{"section", "content", "control"},
)

// SectionAnalysis builds the per-section judgment prompt. The control content
// is empty when no control record was supplied.
func SectionAnalysis(section, content, control string) (string, error) {
	return sectionAnalysis.Format(map[string]any{"section": section, "content": content, "control": control})
}

var itemAnalysis = prompts.NewPromptTemplate(
	`Judge one item of the "{{.section}}" list section of a legal filing against
its counterpart in the control copy. Provide feedback, tags, a status (good,
warning or error) and a score between 0 and 1.

Item:
{{.item}}

Control counterpart:
{{.control}}`,
	[]string{"section", "item", "control"},
)

// ItemAnalysis builds the positional list-item comparison prompt.
func ItemAnalysis(section, item, control string) (string, error) {
	return itemAnalysis.Format(map[string]any{"section": section, "item": item, "control": control})
}

var synthesis = prompts.NewPromptTemplate(
	`Combine the per-section analyses below into one overall analysis of the
filing. Your conclusion must use a score of {{.score}} and a status of
"{{.status}}"; summarize the section feedback into overall feedback and tags.

Per-section analyses:
{{.analyses}}`,
	[]string{"analyses", "score", "status"},
)

// Synthesis builds the final verdict prompt with the required conclusion.
func Synthesis(analysesJSON, score, status string) (string, error) {
	return synthesis.Format(map[string]any{"analyses": analysesJSON, "score": score, "status": status})
}

var classifier = prompts.NewPromptTemplate(
	`An exception filing arrived in an executive collection case. Decide whether
the creditor must respond, whether a compromise should be considered, and
whether the demand needs a correction.

Exception filing:
{{.filing}}

Original demand:
{{.demand}}`,
	[]string{"filing", "demand"},
)

// Classifier builds the cheap stage-1 applicability prompt.
func Classifier(filingJSON, demandJSON string) (string, error) {
	return classifier.Format(map[string]any{"filing": filingJSON, "demand": demandJSON})
}

var suggestions = prompts.NewPromptTemplate(
	`Propose follow-up legal actions for the creditor given the exception filing
and the original demand below. For each candidate give its type (one of:
respond_exceptions, compromise, withdrawal, correction), a short name, a
description of the recommended approach, and a confidence score in [0,1].

Exception filing:
{{.filing}}

Original demand:
{{.demand}}`,
	[]string{"filing", "demand"},
)

// Suggestions builds the expensive stage-2 candidate-generation prompt.
func Suggestions(filingJSON, demandJSON string) (string, error) {
	return suggestions.Format(map[string]any{"filing": filingJSON, "demand": demandJSON})
}

var generation = prompts.NewPromptTemplate(
	`Draft the {{.doc}} for an executive collection case. Use the case context
below. {{if .hint}}Steering notes: {{.hint}}{{end}}

Case context:
{{.context}}`,
	[]string{"doc", "context", "hint"},
)

// Generation builds the downstream document-generator prompt. The hint is the
// free-text description of the accepted suggestion.
func Generation(docName, contextJSON, hint string) (string, error) {
	return generation.Format(map[string]any{"doc": docName, "context": contextJSON, "hint": hint})
}
