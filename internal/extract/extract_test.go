package extract

import (
	"encoding/json"
	"testing"
)

func parse(t *testing.T, raw string) any {
	t.Helper()
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("Failed to parse test document: %v", err)
	}
	return doc
}

func TestExtractFallbackPaths(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want float64
	}{
		{"top level balance", `{"balance": 12345}`, 12345},
		{"nested data.balance", `{"data": {"balance": 500}}`, 500},
		{"user.balance", `{"user": {"balance": 42.5}}`, 42.5},
		{"result.balance", `{"result": {"balance": 1}}`, 1},
		{"sodu", `{"sodu": 99000}`, 99000},
		{"so_du", `{"so_du": "15000"}`, 15000},
		{"data.sodu", `{"data": {"sodu": 7}}`, 7},
		{"money", `{"money": 250000}`, 250000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Extract(parse(t, tt.doc), "")
			if !found {
				t.Fatal("Expected a balance, got not found")
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractHintTakesPrecedence(t *testing.T) {
	doc := parse(t, `{"balance": 1, "custom": {"field": 2}}`)

	got, found := Extract(doc, "custom.field")
	if !found {
		t.Fatal("Expected a balance, got not found")
	}
	if got != 2 {
		t.Errorf("hint path should win over fallback paths: got %v, want 2", got)
	}
}

func TestExtractHintMissFallsBack(t *testing.T) {
	doc := parse(t, `{"balance": 77}`)

	got, found := Extract(doc, "does.not.exist")
	if !found || got != 77 {
		t.Errorf("got (%v, %v), want (77, true)", got, found)
	}
}

func TestExtractStringCoercion(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want float64
	}{
		{"plain digits", `{"balance": "12345"}`, 12345},
		{"thousands separators", `{"balance": "1,234,567"}`, 1234567},
		{"currency suffix", `{"balance": "95000 VND"}`, 95000},
		{"negative", `{"balance": "-500"}`, -500},
		{"decimal", `{"balance": "12345.0"}`, 12345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Extract(parse(t, tt.doc), "")
			if !found || got != tt.want {
				t.Errorf("got (%v, %v), want (%v, true)", got, found, tt.want)
			}
		})
	}
}

func TestExtractNonNumericCandidateSkipped(t *testing.T) {
	// "balance" resolves but cannot be coerced; the deeper value must win
	doc := parse(t, `{"balance": "pending", "data": {"balance": 300}}`)

	got, found := Extract(doc, "")
	if !found || got != 300 {
		t.Errorf("got (%v, %v), want (300, true)", got, found)
	}
}

func TestExtractNullCandidateSkipped(t *testing.T) {
	doc := parse(t, `{"balance": null, "sodu": 10}`)

	got, found := Extract(doc, "")
	if !found || got != 10 {
		t.Errorf("got (%v, %v), want (10, true)", got, found)
	}
}

func TestExtractRecursiveScan(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want float64
	}{
		{"deep wallet balance", `{"result": {"wallet": {"available_balance": 12345}}}`, 12345},
		{"inside array", `{"accounts": [{"credit": 900}]}`, 900},
		{"remaining funds", `{"response": {"funds": {"remain": "12,000"}}}`, 12000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Extract(parse(t, tt.doc), "")
			if !found || got != tt.want {
				t.Errorf("got (%v, %v), want (%v, true)", got, found, tt.want)
			}
		})
	}
}

func TestExtractNotFound(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no matching key", `{"status": "ok", "count": 3}`},
		{"matching key not numeric", `{"balance": "unavailable"}`},
		{"empty object", `{}`},
		{"array of scalars", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, found := Extract(parse(t, tt.doc), ""); found {
				t.Errorf("expected not found, got %v", got)
			}
		})
	}
}

func TestExtractDeterministic(t *testing.T) {
	doc := parse(t, `{"z_money": 2, "a_money": 1}`)

	first, _ := Extract(doc, "")
	for i := 0; i < 50; i++ {
		got, _ := Extract(doc, "")
		if got != first {
			t.Fatalf("extraction is not deterministic: %v then %v", first, got)
		}
	}
}
