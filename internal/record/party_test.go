package record

import (
	"reflect"
	"testing"
)

func TestCanonicalIdentifier(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"76.123.456-7", "76123456-7"},
		{" 12.345.678-k ", "12345678-K"},
		{"76123456-7", "76123456-7"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CanonicalIdentifier(tc.in); got != tc.want {
			t.Fatalf("CanonicalIdentifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMergePartiesByIdentifier(t *testing.T) {
	merged := MergeParties([]Party{
		{Name: "Acme", Identifier: "76.123.456-7", Email: "legal@acme.cl"},
		{Name: "Acme Sociedad por Acciones", Identifier: "76123456-7", Address: "Av. Matta 10"},
		{Name: "Deudor Ltda"},
	})
	if len(merged) != 2 {
		t.Fatalf("expected 2 parties, got %d", len(merged))
	}
	acme := merged[0]
	if acme.Name != "Acme Sociedad por Acciones" {
		t.Fatalf("most complete name should win, got %q", acme.Name)
	}
	if acme.Identifier != "76123456-7" {
		t.Fatalf("expected canonical identifier, got %q", acme.Identifier)
	}
	if acme.Email != "legal@acme.cl" || acme.Address != "Av. Matta 10" {
		t.Fatalf("merged party missing folded attributes: %+v", acme)
	}
	if merged[1].Name != "Deudor Ltda" {
		t.Fatalf("first-seen order not preserved: %+v", merged)
	}
}

func TestMergePartiesByNameWithoutIdentifier(t *testing.T) {
	merged := MergeParties([]Party{
		{Name: "  Juan   Pérez "},
		{Name: "juan pérez", Email: "JP@example.com"},
	})
	if len(merged) != 1 {
		t.Fatalf("expected 1 party, got %d", len(merged))
	}
	if merged[0].Email != "jp@example.com" {
		t.Fatalf("expected lowered email, got %q", merged[0].Email)
	}
}

func TestCrossPropagateRepresentatives(t *testing.T) {
	merged := MergeParties([]Party{{
		Name:            "Acme",
		Address:         "Av. Matta 10",
		Representatives: []Party{{Name: "Juan Pérez", Email: "jp@example.com"}},
	}})
	p := merged[0]
	if p.Email != "jp@example.com" {
		t.Fatalf("party should inherit representative email, got %q", p.Email)
	}
	if p.Representatives[0].Address != "Av. Matta 10" {
		t.Fatalf("representative should inherit party address, got %q", p.Representatives[0].Address)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	amount := 1234.5
	records := []Information{
		&Bill{
			Number:   " F-118 ",
			Amount:   &amount,
			Currency: "clp",
			Creditors: []Party{
				{Name: "Acme", Identifier: "76.123.456-7"},
				{Name: "Acme SpA", Identifier: "76123456-7"},
			},
		},
		&DemandText{
			City:      " Santiago ",
			Creditors: []Party{{Name: "  Acme  SpA "}},
			Debtors:   []Party{{Name: "Deudor Ltda", Identifier: "77.000.111-2"}},
			Claims:    []Claim{{Instrument: "bill", Amount: 1000}},
		},
	}
	for _, info := range records {
		info.Normalize()
		once, err := Encode(info)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		info.Normalize()
		twice, err := Encode(info)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("%s normalize is not idempotent:\n%s\n%s", info.Kind(), once, twice)
		}
	}
}

func TestDecodeNormalizes(t *testing.T) {
	info, err := Decode(KindBill, []byte(`{"number":" F-1 ","currency":"clp"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bill := info.(*Bill)
	if bill.Number != "F-1" || bill.Currency != "CLP" {
		t.Fatalf("decode should normalize: %+v", bill)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	if _, err := Decode(Kind("contract"), []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
