// Package app models a signed-in session as an explicit state value that
// changes only through Reduce.
package app

import (
	"time"

	"github.com/shopspring/decimal"

	"spendly/internal/core"
)

type View string

const (
	ViewLogin       View = "login"
	ViewRegister    View = "register"
	ViewWelcome     View = "welcome"
	ViewDashboard   View = "dashboard"
	ViewReport      View = "report"
	ViewAddExpense  View = "add_expense"
	ViewEditExpense View = "edit_expense"
)

// ParseView accepts the wire names above.
func ParseView(s string) (View, bool) {
	switch v := View(s); v {
	case ViewLogin, ViewRegister, ViewWelcome, ViewDashboard, ViewReport, ViewAddExpense, ViewEditExpense:
		return v, true
	}
	return "", false
}

// State is the whole session. Expenses are newest first, as delivered by the
// store.
type State struct {
	View     View
	User     *core.User
	Expenses []core.Expense
	Budget   decimal.Decimal
	Editing  *core.Expense
	Loading  bool
	SetupURL string
}

// Initial is the state before the first auth notification.
func Initial() State {
	return State{
		View:     ViewLogin,
		Budget:   core.DefaultMonthlyBudget,
		Loading:  true,
		Expenses: []core.Expense{},
	}
}

// Action is a state transition input.
type Action interface {
	action()
}

type (
	// AuthChanged carries the current user, nil when signed out.
	AuthChanged struct{ User *core.User }
	// ExpensesLoaded replaces the expense snapshot.
	ExpensesLoaded struct{ Expenses []core.Expense }
	// BudgetLoaded replaces the budget.
	BudgetLoaded struct{ Budget decimal.Decimal }
	// Navigate switches view.
	Navigate struct{ View View }
	// StartEdit opens the edit view for an expense.
	StartEdit struct{ Expense core.Expense }
	// ExpenseSaved returns to the dashboard after a create or update.
	ExpenseSaved struct{}
	// SetupRequired switches to the setup screen.
	SetupRequired struct{ URL string }
	// SetupResolved clears the setup screen.
	SetupResolved struct{}
)

func (AuthChanged) action()    {}
func (ExpensesLoaded) action() {}
func (BudgetLoaded) action()   {}
func (Navigate) action()       {}
func (StartEdit) action()      {}
func (ExpenseSaved) action()   {}
func (SetupRequired) action()  {}
func (SetupResolved) action()  {}

// Reduce returns the state after applying a. It never mutates s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case AuthChanged:
		s.Loading = false
		if a.User == nil {
			s.User = nil
			s.Expenses = []core.Expense{}
			s.Editing = nil
			s.SetupURL = ""
			s.View = ViewLogin
			return s
		}
		u := *a.User
		s.User = &u
		if s.View == ViewLogin || s.View == ViewRegister {
			s.View = ViewWelcome
		}
	case ExpensesLoaded:
		s.Expenses = append([]core.Expense{}, a.Expenses...)
	case BudgetLoaded:
		if a.Budget.IsPositive() {
			s.Budget = a.Budget
		}
	case Navigate:
		if s.User == nil && a.View != ViewLogin && a.View != ViewRegister {
			return s
		}
		if a.View == ViewEditExpense && s.Editing == nil {
			return s
		}
		if a.View != ViewEditExpense {
			s.Editing = nil
		}
		s.View = a.View
	case StartEdit:
		if s.User == nil {
			return s
		}
		e := a.Expense
		s.Editing = &e
		s.View = ViewEditExpense
	case ExpenseSaved:
		s.Editing = nil
		s.View = ViewDashboard
	case SetupRequired:
		s.SetupURL = a.URL
	case SetupResolved:
		s.SetupURL = ""
	}
	return s
}

// DashboardModel is the derived view data pushed to clients.
type DashboardModel struct {
	View     View
	User     *core.User
	Recent   []core.Expense
	Report   core.MonthlyReport
	SetupURL string
}

// Dashboard derives the recent-activity feed and the current month report.
func Dashboard(s State, now time.Time, loc *time.Location) DashboardModel {
	return DashboardModel{
		View:     s.View,
		User:     s.User,
		Recent:   core.RecentActivity(s.Expenses, now),
		Report:   core.CurrentMonthReport(s.Expenses, now, s.Budget, loc),
		SetupURL: s.SetupURL,
	}
}
