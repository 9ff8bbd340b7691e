package record

import "strings"

// Party is a litigant or legal representative. Identifier is the national
// tax id (e.g. "76.123.456-0" canonicalized to "76123456-0").
type Party struct {
	Name            string  `json:"name,omitempty"`
	Identifier      string  `json:"identifier,omitempty"`
	Address         string  `json:"address,omitempty"`
	Email           string  `json:"email,omitempty"`
	Representatives []Party `json:"representatives,omitempty"`
}

// CanonicalIdentifier strips formatting from a tax id and upper-cases the
// check digit. Stable across repeated application.
func CanonicalIdentifier(id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(id)) {
		switch r {
		case '.', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (p *Party) normalize() {
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	p.Identifier = CanonicalIdentifier(p.Identifier)
	p.Address = strings.TrimSpace(p.Address)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Representatives = MergeParties(p.Representatives)
	p.crossPropagate()
}

// crossPropagate fills missing contact attributes between a party and its
// representatives, in both directions.
func (p *Party) crossPropagate() {
	for i := range p.Representatives {
		rep := &p.Representatives[i]
		if rep.Address == "" {
			rep.Address = p.Address
		}
		if p.Address == "" {
			p.Address = rep.Address
		}
		if rep.Email == "" {
			rep.Email = p.Email
		}
		if p.Email == "" {
			p.Email = rep.Email
		}
	}
}

// MergeParties dedupes a party list, merging entries that share an identity.
// Identity is the canonical identifier when present, otherwise the folded
// name. First-seen order is preserved and the most complete name wins.
func MergeParties(parties []Party) []Party {
	if len(parties) == 0 {
		return parties
	}
	merged := make([]Party, 0, len(parties))
	index := make(map[string]int, len(parties))
	for _, p := range parties {
		p.Name = strings.Join(strings.Fields(p.Name), " ")
		p.Identifier = CanonicalIdentifier(p.Identifier)
		key := partyKey(p)
		if at, ok := index[key]; ok {
			mergeParty(&merged[at], p)
			continue
		}
		index[key] = len(merged)
		merged = append(merged, p)
	}
	for i := range merged {
		merged[i].normalize()
	}
	return merged
}

func partyKey(p Party) string {
	if p.Identifier != "" {
		return "id:" + p.Identifier
	}
	return "name:" + strings.ToLower(p.Name)
}

// mergeParty folds src into dst, keeping the most complete value per field.
func mergeParty(dst *Party, src Party) {
	if len(strings.TrimSpace(src.Name)) > len(strings.TrimSpace(dst.Name)) {
		dst.Name = src.Name
	}
	if dst.Identifier == "" {
		dst.Identifier = src.Identifier
	}
	if dst.Address == "" {
		dst.Address = src.Address
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
	if len(src.Representatives) > 0 {
		dst.Representatives = MergeParties(append(dst.Representatives, src.Representatives...))
	}
}
