package receipt

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"spendly/internal/core"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestParseExtraction(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		amount string // empty means nil
		desc   string
		cat    string
		err    bool
	}{
		{"complete", `{"amount":250,"description":"Coffee","category":"food"}`, "250", "Coffee", "food", false},
		{"fenced", "```json\n{\"amount\":12.5,\"description\":\"Bus\",\"category\":\"transport\"}\n```", "12.5", "Bus", "transport", false},
		{"amount as string", `{"amount":"7,20","description":" Shop ","category":"shopping"}`, "7.2", "Shop", "shopping", false},
		{"zero amount", `{"amount":0,"description":"x","category":"food"}`, "", "x", "food", false},
		{"negative amount", `{"amount":-4,"description":"x"}`, "", "x", "", false},
		{"wrong types", `{"amount":true,"description":5,"category":["food"]}`, "", "", "", false},
		{"missing fields", `{}`, "", "", "", false},
		{"not json", `the total is 12`, "", "", "", true},
		{"array", `[1,2]`, "", "", "", true},
		{"null", `null`, "", "", "", true},
		{"empty", ``, "", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ext, err := ParseExtraction(tc.raw)
			if tc.err {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Fatalf("expected ErrMalformedResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tc.amount == "" && ext.Amount != nil {
				t.Fatalf("expected no amount, got %s", ext.Amount)
			}
			if tc.amount != "" && (ext.Amount == nil || ext.Amount.String() != tc.amount) {
				t.Fatalf("expected amount %s, got %v", tc.amount, ext.Amount)
			}
			if ext.Description != tc.desc || ext.Category != tc.cat {
				t.Fatalf("unexpected %+v", ext)
			}
		})
	}
}

func TestParseExtractionNullBody(t *testing.T) {
	_, err := ParseExtraction(`null`)
	if err != ErrMalformedResponse {
		t.Fatalf("expected bare ErrMalformedResponse, got %v", err)
	}
	if strings.Contains(err.Error(), "<nil>") {
		t.Fatalf("error leaks nil cause: %q", err)
	}
}

func TestMergeAllFields(t *testing.T) {
	amt := mustDecimal(t, "250")
	current := Fields{Amount: "1", Category: core.CategoryHealth, Description: "old"}

	got, applied := Merge(current, Extraction{Amount: &amt, Description: "Coffee", Category: "food"})
	if got.Amount != "250" || got.Description != "Coffee" || got.Category != core.CategoryFood {
		t.Fatalf("unexpected %+v", got)
	}
	if !applied.Amount || !applied.Description || !applied.Category {
		t.Fatalf("unexpected applied %+v", applied)
	}
}

func TestMergeRejectsUnknownCategory(t *testing.T) {
	amt := mustDecimal(t, "250")
	current := Fields{Amount: "1", Category: core.CategoryHealth, Description: "old"}

	got, applied := Merge(current, Extraction{Amount: &amt, Description: "Coffee", Category: "bogus"})
	if got.Amount != "250" || got.Description != "Coffee" {
		t.Fatalf("amount and description must apply, got %+v", got)
	}
	if got.Category != core.CategoryHealth || applied.Category {
		t.Fatalf("category must be left unchanged, got %s", got.Category)
	}
}

func TestMergeKeepsFieldsForEmptyValues(t *testing.T) {
	current := Fields{Amount: "9", Category: core.CategoryOther, Description: "mine"}
	got, applied := Merge(current, Extraction{Description: "   "})
	if got != current || applied.Any() {
		t.Fatalf("nothing should change, got %+v %+v", got, applied)
	}
}

func TestMergeTruncatesLongDescription(t *testing.T) {
	long := strings.Repeat("é", core.MaxDescriptionLength)
	got, _ := Merge(DefaultFields(), Extraction{Description: long})
	if len(got.Description) > core.MaxDescriptionLength {
		t.Fatalf("description not truncated: %d bytes", len(got.Description))
	}
	if !strings.HasPrefix(long, got.Description) || strings.ContainsRune(got.Description, '�') {
		t.Fatalf("truncation split a rune")
	}
}
