package record

import "strings"

// LegalBrief is the structured output of the downstream document generators
// (responses to exceptions, compromise offers, withdrawals, corrections).
// It decomposes into the same section set the analyzer judges, so a
// generated brief can be validated against a control record.
type LegalBrief struct {
	Header             string   `json:"header,omitempty"`
	Summary            string   `json:"summary,omitempty"`
	Court              string   `json:"court,omitempty"`
	Opening            string   `json:"opening,omitempty"`
	Arguments          []string `json:"arguments,omitempty"`
	MainRequest        string   `json:"main_request,omitempty"`
	AdditionalRequests []string `json:"additional_requests,omitempty"`
}

func (b *LegalBrief) Sections() []Section {
	return []Section{
		{Name: "header", Content: b.Header},
		{Name: "summary", Content: b.Summary},
		{Name: "court", Content: b.Court},
		{Name: "opening", Content: b.Opening},
		{Name: "arguments", List: true, Items: b.Arguments},
		{Name: "main_request", Content: b.MainRequest},
		{Name: "additional_requests", Content: strings.Join(b.AdditionalRequests, "\n")},
	}
}
