package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC)
	taipei, _ := time.LoadLocation("Asia/Taipei")

	tests := []struct {
		name      string
		query     url.Values
		loc       *time.Location
		wantYear  int
		wantMonth time.Month
		wantErr   bool
	}{
		{
			name:      "both values provided",
			query:     url.Values{"year": {"2023"}, "month": {"12"}},
			wantYear:  2023,
			wantMonth: time.December,
		},
		{
			name:      "defaults to current month",
			query:     url.Values{},
			wantYear:  2024,
			wantMonth: time.March,
		},
		{
			name:      "defaults follow the location",
			query:     url.Values{},
			loc:       taipei,
			wantYear:  2024,
			wantMonth: time.April,
		},
		{
			name:      "only month",
			query:     url.Values{"month": {"5"}},
			wantYear:  2024,
			wantMonth: time.May,
		},
		{
			name:    "month out of range",
			query:   url.Values{"month": {"13"}},
			wantErr: true,
		},
		{
			name:    "non-numeric year",
			query:   url.Values{"year": {"abc"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := tt.loc
			if loc == nil {
				loc = time.UTC
			}
			got, err := ParseMonthParams(tt.query, now, loc)
			if tt.wantErr {
				if !errors.Is(err, errBadRequest) {
					t.Fatalf("expected errBadRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if got.Year != tt.wantYear || got.Month != tt.wantMonth {
				t.Fatalf("got %d-%d, want %d-%d", got.Year, got.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"description": " lunch\u0007 ", "amount": 12.50, "flag": true}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Fatal("expected JSON body")
	}
	if got := parser.Get("description"); got != "lunch" {
		t.Errorf("description = %q", got)
	}
	// literal text is preserved
	if got := parser.Get("amount"); got != "12.50" {
		t.Errorf("amount = %q", got)
	}
	if got := parser.Get("flag"); got != "true" {
		t.Errorf("flag = %q", got)
	}
	if parser.Has("missing") || parser.Get("missing") != "" {
		t.Error("missing key should be absent")
	}
}

func TestRequestBodyParser_Form(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("amount=12%2C34&category=food"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Fatal("form parsed as JSON")
	}
	if parser.Get("amount") != "12,34" || parser.Get("category") != "food" || !parser.Has("category") {
		t.Fatalf("unexpected values %q %q", parser.Get("amount"), parser.Get("category"))
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"amount": `},
		{"too large", `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			parser := NewRequestBodyParser(httptest.NewRecorder(), req)
			err := parser.Parse()
			if !errors.Is(err, errBadRequest) {
				t.Fatalf("expected errBadRequest, got %v", err)
			}
			// cached
			if parser.Parse() != err {
				t.Fatal("second Parse should return the same error")
			}
		})
	}
}

func TestRequestBodyParser_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.Get("anything") != "" {
		t.Fatal("expected empty value")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b\x1fc", "abc"},
		{"line1\nline2\ttab", "line1\nline2\ttab"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
