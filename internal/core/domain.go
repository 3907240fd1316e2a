package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is one of the fixed expense classifications.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryHousing       Category = "housing"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryClothing      Category = "clothing"
	CategoryHealth        Category = "health"
	CategoryOther         Category = "other"
)

// MaxDescriptionLength bounds expense descriptions.
const MaxDescriptionLength = 200

// DefaultMonthlyBudget is assigned to new profiles.
var DefaultMonthlyBudget = decimal.NewFromInt(10000)

var categoryOrder = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryHousing,
	CategoryShopping,
	CategoryEntertainment,
	CategoryClothing,
	CategoryHealth,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryFood:          "Food",
	CategoryTransport:     "Transport",
	CategoryHousing:       "Housing",
	CategoryShopping:      "Shopping",
	CategoryEntertainment: "Entertainment",
	CategoryClothing:      "Clothing",
	CategoryHealth:        "Health",
	CategoryOther:         "Other",
}

type (
	Expense struct {
		ID          string
		UserID      string
		Amount      decimal.Decimal
		Category    Category
		Description string
		Timestamp   time.Time
	}

	// ExpenseEdit carries the fields an edit may change. ID, owner and
	// timestamp are fixed at creation.
	ExpenseEdit struct {
		Amount      decimal.Decimal
		Category    Category
		Description string
	}

	User struct {
		ID          string
		Email       string
		DisplayName string
		PhotoURL    string
	}

	Profile struct {
		UserID        string
		MonthlyBudget decimal.Decimal
		CreatedAt     time.Time
		LastLogin     time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidBudget      = errors.New("invalid budget")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrInvalidCategory    = errors.New("invalid category")
	ErrMissingOwner       = errors.New("expense has no owner")
)

// Categories returns the known categories in display order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ParseCategory accepts a category code, ignoring case and surrounding space.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human readable name, or the raw code for unknown values.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (e ExpenseEdit) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	return validateDescription(e.Description)
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrMissingOwner
	}
	if e.Timestamp.IsZero() {
		return errors.New("timestamp cannot be zero")
	}
	return ExpenseEdit{Amount: e.Amount, Category: e.Category, Description: e.Description}.Validate()
}

// Apply returns a copy of e with the editable fields replaced.
func (e Expense) Apply(edit ExpenseEdit) Expense {
	e.Amount = edit.Amount
	e.Category = edit.Category
	e.Description = strings.TrimSpace(edit.Description)
	return e
}

// Millis converts t to milliseconds since the Unix epoch.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis is the inverse of Millis.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
