package http

import (
	"net/http"

	"spendly/internal/core"
	"spendly/internal/log"
)

// parseEdit reads amount, category and description from a request body.
func parseEdit(p *RequestBodyParser) (core.ExpenseEdit, error) {
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.ExpenseEdit{}, err
	}
	category, err := core.ParseCategory(p.Get("category"))
	if err != nil {
		return core.ExpenseEdit{}, err
	}
	edit := core.ExpenseEdit{Amount: amount, Category: category, Description: p.Get("description")}
	return edit, edit.Validate()
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.deps.Expenses.List(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"expenses": toExpensesJSON(expenses, s.deps.Location),
	}).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Expenses.Get(r.Context(), currentUser(r).ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(toExpenseJSON(e, s.deps.Location)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	edit, err := parseEdit(p)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	e, err := s.deps.Expenses.Create(r.Context(), currentUser(r).ID, edit)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID).
		JSON(toExpenseJSON(e, s.deps.Location)).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	edit, err := parseEdit(p)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	e, err := s.deps.Expenses.Update(r.Context(), currentUser(r).ID, r.PathValue("id"), edit)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(toExpenseJSON(e, s.deps.Location)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Expenses.Delete(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	recent, err := s.deps.Expenses.Recent(r.Context(), currentUser(r).ID, s.now())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"expenses": toExpensesJSON(recent, s.deps.Location),
	}).Write(w)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now(), s.deps.Location)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	userID := currentUser(r).ID
	budget, err := s.deps.Profiles.Budget(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	report, err := s.deps.Expenses.Report(r.Context(), userID, params.Year, params.Month, budget, s.deps.Location)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(toReportJSON(report)).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	budget, err := core.ParseBudget(p.Get("budget"))
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	if err := s.deps.Profiles.UpdateBudget(r.Context(), currentUser(r).ID, budget); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(map[string]string{"monthly_budget": core.FormatAmount(budget)}).Write(w)
}
