package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"spendly/internal/core"
)

// ErrMalformedResponse is returned when the extraction reply is not a JSON
// object. No field is applied in that case.
var ErrMalformedResponse = errors.New("malformed extraction response")

// Extraction is the parsed reply of a structured-extraction call. Each field
// is optional; a nil or empty value means the backend did not supply a usable
// value.
type Extraction struct {
	Amount      *decimal.Decimal
	Description string
	Category    string
}

// Applied reports which form fields a merge overwrote.
type Applied struct {
	Amount      bool
	Description bool
	Category    bool
}

func (a Applied) Any() bool {
	return a.Amount || a.Description || a.Category
}

// ParseExtraction decodes a reply body. The body must be a JSON object;
// fields with the wrong type are ignored individually so one bad field does
// not hide the others.
func ParseExtraction(raw string) (Extraction, error) {
	body := strings.TrimSpace(stripCodeFence(raw))
	if body == "" {
		return Extraction{}, ErrMalformedResponse
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if obj == nil {
		return Extraction{}, ErrMalformedResponse
	}

	var ext Extraction
	if v, ok := obj["amount"]; ok {
		ext.Amount = parseAmountValue(v)
	}
	if v, ok := obj["description"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			ext.Description = strings.TrimSpace(s)
		}
	}
	if v, ok := obj["category"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			ext.Category = strings.TrimSpace(s)
		}
	}
	return ext, nil
}

// parseAmountValue accepts a JSON number, or a string holding one, that is
// strictly positive.
func parseAmountValue(v json.RawMessage) *decimal.Decimal {
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil
	}
	var d decimal.Decimal
	switch t := x.(type) {
	case json.Number:
		parsed, err := decimal.NewFromString(t.String())
		if err != nil {
			return nil
		}
		d = parsed
	case string:
		parsed, err := core.ParseAmount(t)
		if err != nil {
			return nil
		}
		d = parsed
	default:
		return nil
	}
	if !d.IsPositive() {
		return nil
	}
	return &d
}

// stripCodeFence removes a ```json fence some models wrap replies in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Merge overwrites the fields of current that ext supplies valid values for.
// A category outside the known set is never assigned.
func Merge(current Fields, ext Extraction) (Fields, Applied) {
	var applied Applied
	if ext.Amount != nil && ext.Amount.IsPositive() {
		current.Amount = ext.Amount.String()
		applied.Amount = true
	}
	if d := strings.TrimSpace(ext.Description); d != "" {
		current.Description = truncate(d, core.MaxDescriptionLength)
		applied.Description = true
	}
	if c := core.Category(ext.Category); c.Valid() {
		current.Category = c
		applied.Category = true
	}
	return current, applied
}
