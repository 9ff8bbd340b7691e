// Package record defines the typed facts extracted from case documents.
// One concrete record shape exists per document kind; all of them implement
// Information so the extraction engine and the event pipeline can be written
// once against the interface.
package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies a document kind and doubles as the schema name sent to the
// structured-generation model.
type Kind string

const (
	KindBill               Kind = "bill"
	KindPromissoryNote     Kind = "promissory_note"
	KindDemandText         Kind = "demand_text"
	KindDispatchResolution Kind = "dispatch_resolution"
	KindExceptions         Kind = "exceptions"
	KindFraudReport        Kind = "fraud_report"
)

// Information is the contract every extracted record satisfies. Normalize
// canonicalizes sub-entities and must be idempotent: it runs once at
// extraction time and again after cross-entity merges.
type Information interface {
	Kind() Kind
	Normalize()
}

// Claim is one monetary claim contributed by an executive instrument
// (a bill or a promissory note).
type Claim struct {
	Instrument string  `json:"instrument,omitempty"`
	Number     string  `json:"number,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	Currency   string  `json:"currency,omitempty"`
	DueDate    string  `json:"due_date,omitempty"`
}

// Instrument is implemented by record kinds that can seed a demand: they
// expose their party lists and a monetary claim for cross-document merging.
type Instrument interface {
	Information
	InstrumentParties() (creditors, debtors []Party)
	InstrumentClaim() Claim
}

// CourtInfo is the court metadata used to resolve or create the court-case
// aggregate for a chain.
type CourtInfo struct {
	Court   string `json:"court,omitempty"`
	Caption string `json:"caption,omitempty"`
	Docket  string `json:"docket,omitempty"`
}

// CourtBearer is implemented by record kinds that carry court metadata.
type CourtBearer interface {
	CourtInfo() CourtInfo
}

// Section is one named slice of a structured record submitted to the section
// analyzer. List sections carry their items and are compared item by item.
type Section struct {
	Name    string
	Content string
	Items   []string
	List    bool
}

// Sectioned is implemented by records that decompose into the fixed section
// set the analyzer works on.
type Sectioned interface {
	Sections() []Section
}

// New returns a fresh zero record for the given kind.
func New(kind Kind) (Information, error) {
	switch kind {
	case KindBill:
		return &Bill{}, nil
	case KindPromissoryNote:
		return &PromissoryNote{}, nil
	case KindDemandText:
		return &DemandText{}, nil
	case KindDispatchResolution:
		return &DispatchResolution{}, nil
	case KindExceptions:
		return &Exceptions{}, nil
	case KindFraudReport:
		return &FraudReport{}, nil
	}
	return nil, fmt.Errorf("record: unknown kind %q", kind)
}

// Decode unmarshals a stored content column into its concrete record type.
// Pipeline code never sees untyped maps: content is decoded at the boundary.
func Decode(kind Kind, raw []byte) (Information, error) {
	info, err := New(kind)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return info, nil
	}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, fmt.Errorf("record: decode %s: %w", kind, err)
	}
	info.Normalize()
	return info, nil
}

// Encode marshals a record for the content column.
func Encode(info Information) ([]byte, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("record: encode %s: %w", info.Kind(), err)
	}
	return data, nil
}

// ParseKind validates a kind received from an external caller.
func ParseKind(s string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case KindBill, KindPromissoryNote, KindDemandText,
		KindDispatchResolution, KindExceptions, KindFraudReport:
		return kind, nil
	}
	return "", fmt.Errorf("record: unknown kind %q", s)
}
