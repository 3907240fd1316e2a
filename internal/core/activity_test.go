package core

import (
	"fmt"
	"testing"
	"time"
)

func TestRecentActivityWithinWindow(t *testing.T) {
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	in := []Expense{
		exp(1, CategoryFood, now.Add(-2*24*time.Hour)),
		exp(2, CategoryFood, now.Add(-8*24*time.Hour)),
		exp(3, CategoryFood, now.Add(-1*time.Hour)),
		exp(4, CategoryFood, now.Add(-RecentWindow)), // boundary is inclusive
	}

	got := RecentActivity(in, now)
	if len(got) != 3 {
		t.Fatalf("expected 3 recent expenses, got %d", len(got))
	}
	want := []int64{3, 1, 4}
	for i, w := range want {
		if got[i].Amount.IntPart() != w {
			t.Fatalf("position %d: expected %d, got %s", i, w, got[i].Amount)
		}
	}
	if in[0].Amount.IntPart() != 1 || in[2].Amount.IntPart() != 3 {
		t.Fatalf("input must not be reordered")
	}
}

func TestRecentActivityFallback(t *testing.T) {
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	var in []Expense
	// newest first, all older than the window
	for i := 0; i < 25; i++ {
		in = append(in, exp(int64(i+1), CategoryOther, now.Add(-time.Duration(10+i)*24*time.Hour)))
	}

	got := RecentActivity(in, now)
	if len(got) != RecentFallbackLimit {
		t.Fatalf("expected %d, got %d", RecentFallbackLimit, len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Timestamp.After(got[i].Timestamp) {
			t.Fatalf("not sorted newest first at %d", i)
		}
	}
	if got[19].Amount.IntPart() != 20 {
		t.Fatalf("expected the first 20 of the input, last is %s", got[19].Amount)
	}
}

func TestRecentActivityFallbackTruncatesBeforeSorting(t *testing.T) {
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	var in []Expense
	// oldest first: the fallback keeps the first 20 of the input as given
	for i := 0; i < 25; i++ {
		in = append(in, exp(int64(i+1), CategoryOther, now.Add(-time.Duration(60-i)*24*time.Hour)))
	}
	got := RecentActivity(in, now)
	if got[0].Amount.IntPart() != 20 || got[19].Amount.IntPart() != 1 {
		t.Fatalf("unexpected selection: first=%s last=%s", got[0].Amount, got[19].Amount)
	}
}

func TestRecentActivityEmpty(t *testing.T) {
	got := RecentActivity(nil, time.Now())
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

func TestRecentActivitySmallFallback(t *testing.T) {
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	in := []Expense{
		exp(1, CategoryFood, now.Add(-30*24*time.Hour)),
		exp(2, CategoryFood, now.Add(-10*24*time.Hour)),
	}
	got := RecentActivity(in, now)
	if len(got) != 2 || got[0].Amount.IntPart() != 2 {
		t.Fatalf("unexpected %v", fmt.Sprint(got))
	}
}
