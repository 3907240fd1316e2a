package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// InsightKind selects the advice shown under a monthly report.
type InsightKind string

const (
	InsightOverBudget  InsightKind = "over_budget"
	InsightTopCategory InsightKind = "top_category"
	InsightEmpty       InsightKind = "empty"
)

// CategoryShare is one line of a monthly breakdown.
type CategoryShare struct {
	Category       Category
	Amount         decimal.Decimal
	PercentOfTotal float64
}

type Insight struct {
	Kind     InsightKind
	Category Category // set for InsightTopCategory
}

// MonthlyReport summarizes a calendar month against a budget. It is derived
// on demand and never stored.
type MonthlyReport struct {
	Year      int
	Month     int // 1-12
	Budget    decimal.Decimal
	Total     decimal.Decimal
	Count     int
	Breakdown []CategoryShare

	// PercentOfBudget is round(total/budget*100) and may exceed 100.
	PercentOfBudget int64
	// BarFraction is the same ratio clamped to [0, 100] for progress bars.
	BarFraction float64

	IsOverBudget       bool
	RemainingOrOverage decimal.Decimal
	Insight            Insight
}

// BuildMonthlyReport aggregates the expenses whose timestamp falls in the
// given month of loc. A nil loc means time.Local. Budget must be positive;
// callers validate it on edit.
func BuildMonthlyReport(expenses []Expense, year, month int, budget decimal.Decimal, loc *time.Location) MonthlyReport {
	if loc == nil {
		loc = time.Local
	}

	sums := make(map[Category]decimal.Decimal, len(categoryOrder))
	total := decimal.Zero
	count := 0
	for _, e := range expenses {
		t := e.Timestamp.In(loc)
		if t.Year() != year || int(t.Month()) != month {
			continue
		}
		c := e.Category
		if !c.Valid() {
			c = CategoryOther
		}
		sums[c] = sums[c].Add(e.Amount)
		total = total.Add(e.Amount)
		count++
	}

	r := MonthlyReport{
		Year:      year,
		Month:     month,
		Budget:    budget,
		Total:     total,
		Count:     count,
		Breakdown: []CategoryShare{},
	}

	if total.IsPositive() {
		for _, c := range categoryOrder {
			amt, ok := sums[c]
			if !ok || amt.IsZero() {
				continue
			}
			r.Breakdown = append(r.Breakdown, CategoryShare{
				Category:       c,
				Amount:         amt,
				PercentOfTotal: amt.Mul(hundred).Div(total).InexactFloat64(),
			})
		}
		// Stable keeps category order for equal amounts.
		sort.SliceStable(r.Breakdown, func(i, j int) bool {
			return r.Breakdown[i].Amount.GreaterThan(r.Breakdown[j].Amount)
		})
	}

	if budget.IsPositive() {
		ratio := total.Mul(hundred).Div(budget)
		r.PercentOfBudget = ratio.Round(0).IntPart()
		r.BarFraction = decimal.Min(ratio, hundred).InexactFloat64()
	}

	r.IsOverBudget = total.GreaterThan(budget)
	if r.IsOverBudget {
		r.RemainingOrOverage = total.Sub(budget)
	} else {
		r.RemainingOrOverage = budget.Sub(total)
	}

	switch {
	case r.IsOverBudget:
		r.Insight = Insight{Kind: InsightOverBudget}
	case len(r.Breakdown) > 0:
		r.Insight = Insight{Kind: InsightTopCategory, Category: r.Breakdown[0].Category}
	default:
		r.Insight = Insight{Kind: InsightEmpty}
	}
	return r
}

// Overage is the amount spent beyond the budget, zero when within it.
func (r MonthlyReport) Overage() decimal.Decimal {
	if r.IsOverBudget {
		return r.RemainingOrOverage
	}
	return decimal.Zero
}

// CurrentMonthReport builds the report for the month containing now in loc.
func CurrentMonthReport(expenses []Expense, now time.Time, budget decimal.Decimal, loc *time.Location) MonthlyReport {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	return BuildMonthlyReport(expenses, t.Year(), int(t.Month()), budget, loc)
}
