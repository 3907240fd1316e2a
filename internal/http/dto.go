package http

import (
	"time"

	"spendly/internal/app"
	"spendly/internal/core"
	"spendly/internal/receipt"
)

type userJSON struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

type profileJSON struct {
	MonthlyBudget string `json:"monthly_budget"`
	CreatedAt     int64  `json:"created_at"`
	LastLogin     int64  `json:"last_login,omitempty"`
}

type expenseJSON struct {
	ID            string `json:"id"`
	Amount        string `json:"amount"`
	Category      string `json:"category"`
	CategoryLabel string `json:"category_label"`
	Description   string `json:"description"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64  `json:"timestamp"`
	Date      string `json:"date"`
}

type categoryShareJSON struct {
	Category       string  `json:"category"`
	Label          string  `json:"label"`
	Amount         string  `json:"amount"`
	PercentOfTotal float64 `json:"percent_of_total"`
}

type insightJSON struct {
	Kind     string `json:"kind"`
	Category string `json:"category,omitempty"`
}

type reportJSON struct {
	Year               int                 `json:"year"`
	Month              int                 `json:"month"`
	Budget             string              `json:"budget"`
	Total              string              `json:"total"`
	Count              int                 `json:"count"`
	Breakdown          []categoryShareJSON `json:"breakdown"`
	PercentOfBudget    int64               `json:"percent_of_budget"`
	BarFraction        float64             `json:"bar_fraction"`
	IsOverBudget       bool                `json:"is_over_budget"`
	RemainingOrOverage string              `json:"remaining_or_overage"`
	Insight            insightJSON         `json:"insight"`
}

type dashboardJSON struct {
	View     string        `json:"view"`
	User     *userJSON     `json:"user,omitempty"`
	Recent   []expenseJSON `json:"recent"`
	Report   reportJSON    `json:"report"`
	SetupURL string        `json:"setup_url,omitempty"`
}

type fieldsJSON struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type draftJSON struct {
	Fields     fieldsJSON `json:"fields"`
	Phase      string     `json:"phase"`
	HasImage   bool       `json:"has_image"`
	MIMEType   string     `json:"mime_type,omitempty"`
	Size       int        `json:"size,omitempty"`
	Message    string     `json:"message,omitempty"`
	Credential string     `json:"credential"`
}

type recognizeJSON struct {
	Applied appliedJSON `json:"applied"`
	Draft   draftJSON   `json:"draft"`
}

type appliedJSON struct {
	Amount      bool `json:"amount"`
	Description bool `json:"description"`
	Category    bool `json:"category"`
}

func toUserJSON(u core.User) userJSON {
	return userJSON{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}
}

func toProfileJSON(p core.Profile) profileJSON {
	out := profileJSON{
		MonthlyBudget: core.FormatAmount(p.MonthlyBudget),
		CreatedAt:     core.Millis(p.CreatedAt),
	}
	if !p.LastLogin.IsZero() {
		out.LastLogin = core.Millis(p.LastLogin)
	}
	return out
}

func toExpenseJSON(e core.Expense, loc *time.Location) expenseJSON {
	return expenseJSON{
		ID:            e.ID,
		Amount:        core.FormatAmount(e.Amount),
		Category:      string(e.Category),
		CategoryLabel: e.Category.Label(),
		Description:   e.Description,
		Timestamp:     core.Millis(e.Timestamp),
		Date:          e.Timestamp.In(loc).Format(time.RFC3339),
	}
}

func toExpensesJSON(es []core.Expense, loc *time.Location) []expenseJSON {
	out := make([]expenseJSON, 0, len(es))
	for _, e := range es {
		out = append(out, toExpenseJSON(e, loc))
	}
	return out
}

func toReportJSON(r core.MonthlyReport) reportJSON {
	out := reportJSON{
		Year:               r.Year,
		Month:              r.Month,
		Budget:             core.FormatAmount(r.Budget),
		Total:              core.FormatAmount(r.Total),
		Count:              r.Count,
		Breakdown:          make([]categoryShareJSON, 0, len(r.Breakdown)),
		PercentOfBudget:    r.PercentOfBudget,
		BarFraction:        r.BarFraction,
		IsOverBudget:       r.IsOverBudget,
		RemainingOrOverage: core.FormatAmount(r.RemainingOrOverage),
		Insight:            insightJSON{Kind: string(r.Insight.Kind), Category: string(r.Insight.Category)},
	}
	for _, c := range r.Breakdown {
		out.Breakdown = append(out.Breakdown, categoryShareJSON{
			Category:       string(c.Category),
			Label:          c.Category.Label(),
			Amount:         core.FormatAmount(c.Amount),
			PercentOfTotal: c.PercentOfTotal,
		})
	}
	return out
}

func toDashboardJSON(m app.DashboardModel, loc *time.Location) dashboardJSON {
	out := dashboardJSON{
		View:     string(m.View),
		Recent:   toExpensesJSON(m.Recent, loc),
		Report:   toReportJSON(m.Report),
		SetupURL: m.SetupURL,
	}
	if m.User != nil {
		u := toUserJSON(*m.User)
		out.User = &u
	}
	return out
}

func toDraftJSON(s receipt.Snapshot, credential receipt.CredentialStatus) draftJSON {
	return draftJSON{
		Fields: fieldsJSON{
			Amount:      s.Fields.Amount,
			Category:    string(s.Fields.Category),
			Description: s.Fields.Description,
		},
		Phase:      string(s.Phase),
		HasImage:   s.HasImage,
		MIMEType:   s.MIMEType,
		Size:       s.Size,
		Message:    s.Message,
		Credential: credential.String(),
	}
}
