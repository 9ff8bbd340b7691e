package record

import (
	"fmt"
	"strings"
)

// Bill is an invoice offered as an executive instrument.
type Bill struct {
	Number    string   `json:"number,omitempty"`
	IssueDate string   `json:"issue_date,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	City      string   `json:"city,omitempty"`
	Creditors []Party  `json:"creditors,omitempty"`
	Debtors   []Party  `json:"debtors,omitempty"`
}

func (b *Bill) Kind() Kind { return KindBill }

func (b *Bill) Normalize() {
	b.Number = strings.TrimSpace(b.Number)
	b.City = strings.TrimSpace(b.City)
	b.Currency = strings.ToUpper(strings.TrimSpace(b.Currency))
	b.Creditors = MergeParties(b.Creditors)
	b.Debtors = MergeParties(b.Debtors)
}

func (b *Bill) InstrumentParties() (creditors, debtors []Party) {
	return b.Creditors, b.Debtors
}

func (b *Bill) InstrumentClaim() Claim {
	c := Claim{Instrument: string(KindBill), Number: b.Number, Currency: b.Currency, DueDate: b.IssueDate}
	if b.Amount != nil {
		c.Amount = *b.Amount
	}
	return c
}

// PromissoryNote is a signed note offered as an executive instrument.
type PromissoryNote struct {
	Number    string   `json:"number,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	DueDate   string   `json:"due_date,omitempty"`
	City      string   `json:"city,omitempty"`
	Creditors []Party  `json:"creditors,omitempty"`
	Debtors   []Party  `json:"debtors,omitempty"`
}

func (n *PromissoryNote) Kind() Kind { return KindPromissoryNote }

func (n *PromissoryNote) Normalize() {
	n.Number = strings.TrimSpace(n.Number)
	n.City = strings.TrimSpace(n.City)
	n.Currency = strings.ToUpper(strings.TrimSpace(n.Currency))
	n.Creditors = MergeParties(n.Creditors)
	n.Debtors = MergeParties(n.Debtors)
}

func (n *PromissoryNote) InstrumentParties() (creditors, debtors []Party) {
	return n.Creditors, n.Debtors
}

func (n *PromissoryNote) InstrumentClaim() Claim {
	c := Claim{Instrument: string(KindPromissoryNote), Number: n.Number, Currency: n.Currency, DueDate: n.DueDate}
	if n.Amount != nil {
		c.Amount = *n.Amount
	}
	return c
}

// DemandText is the executive demand filing that opens a case chain.
type DemandText struct {
	Header             string  `json:"header,omitempty"`
	Summary            string  `json:"summary,omitempty"`
	Court              string  `json:"court,omitempty"`
	Caption            string  `json:"caption,omitempty"`
	Docket             string  `json:"docket,omitempty"`
	City               string  `json:"city,omitempty"`
	Opening            string  `json:"opening,omitempty"`
	Creditors          []Party `json:"creditors,omitempty"`
	Debtors            []Party `json:"debtors,omitempty"`
	Claims             []Claim `json:"claims,omitempty"`
	MainRequest        string  `json:"main_request,omitempty"`
	AdditionalRequests []string `json:"additional_requests,omitempty"`
}

func (d *DemandText) Kind() Kind { return KindDemandText }

func (d *DemandText) Normalize() {
	d.Court = strings.TrimSpace(d.Court)
	d.Caption = strings.TrimSpace(d.Caption)
	d.Docket = strings.TrimSpace(d.Docket)
	d.City = strings.TrimSpace(d.City)
	d.Creditors = MergeParties(d.Creditors)
	d.Debtors = MergeParties(d.Debtors)
}

func (d *DemandText) CourtInfo() CourtInfo {
	return CourtInfo{Court: d.Court, Caption: d.Caption, Docket: d.Docket}
}

func (d *DemandText) Sections() []Section {
	return []Section{
		{Name: "header", Content: d.Header},
		{Name: "summary", Content: d.Summary},
		{Name: "court", Content: d.Court},
		{Name: "opening", Content: d.Opening},
		{Name: "claims", List: true, Items: formatClaims(d.Claims)},
		{Name: "main_request", Content: d.MainRequest},
		{Name: "additional_requests", Content: strings.Join(d.AdditionalRequests, "\n")},
	}
}

func formatClaims(claims []Claim) []string {
	items := make([]string, 0, len(claims))
	for _, c := range claims {
		items = append(items, fmt.Sprintf("%s %s: %.2f %s due %s", c.Instrument, c.Number, c.Amount, c.Currency, c.DueDate))
	}
	return items
}

// DispatchResolution is the court order resolving the demand ("despachese").
type DispatchResolution struct {
	Court          string `json:"court,omitempty"`
	Caption        string `json:"caption,omitempty"`
	Docket         string `json:"docket,omitempty"`
	ResolutionDate string `json:"resolution_date,omitempty"`
	OrderText      string `json:"order_text,omitempty"`
	WritGranted    bool   `json:"writ_granted,omitempty"`
}

func (r *DispatchResolution) Kind() Kind { return KindDispatchResolution }

func (r *DispatchResolution) Normalize() {
	r.Court = strings.TrimSpace(r.Court)
	r.Caption = strings.TrimSpace(r.Caption)
	r.Docket = strings.TrimSpace(r.Docket)
	r.OrderText = strings.TrimSpace(r.OrderText)
}

func (r *DispatchResolution) CourtInfo() CourtInfo {
	return CourtInfo{Court: r.Court, Caption: r.Caption, Docket: r.Docket}
}

// Plea is one statutory exception pleaded by a debtor.
type Plea struct {
	Ground   string `json:"ground,omitempty"`
	Argument string `json:"argument,omitempty"`
}

// Exceptions is the debtor's exception filing against the writ.
type Exceptions struct {
	Court      string  `json:"court,omitempty"`
	Caption    string  `json:"caption,omitempty"`
	Docket     string  `json:"docket,omitempty"`
	FilingDate string  `json:"filing_date,omitempty"`
	Debtors    []Party `json:"debtors,omitempty"`
	Pleas      []Plea  `json:"pleas,omitempty"`
}

func (e *Exceptions) Kind() Kind { return KindExceptions }

func (e *Exceptions) Normalize() {
	e.Court = strings.TrimSpace(e.Court)
	e.Caption = strings.TrimSpace(e.Caption)
	e.Docket = strings.TrimSpace(e.Docket)
	e.Debtors = MergeParties(e.Debtors)
	for i := range e.Pleas {
		e.Pleas[i].Ground = strings.TrimSpace(e.Pleas[i].Ground)
		e.Pleas[i].Argument = strings.TrimSpace(e.Pleas[i].Argument)
	}
}

func (e *Exceptions) CourtInfo() CourtInfo {
	return CourtInfo{Court: e.Court, Caption: e.Caption, Docket: e.Docket}
}

// FraudReport is a criminal fraud complaint derived from the civil case.
type FraudReport struct {
	Reporter Party   `json:"reporter,omitempty"`
	Facts    string  `json:"facts,omitempty"`
	Suspects []Party `json:"suspects,omitempty"`
}

func (f *FraudReport) Kind() Kind { return KindFraudReport }

func (f *FraudReport) Normalize() {
	f.Reporter.normalize()
	f.Facts = strings.TrimSpace(f.Facts)
	f.Suspects = MergeParties(f.Suspects)
}
