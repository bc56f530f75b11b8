package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Collection names as used by the record store.
const (
	CollectionExpenses    Collection = "expenses"
	CollectionBills       Collection = "bills"
	CollectionBudgets     Collection = "budget"
	CollectionEmployees   Collection = "employees"
	CollectionDepartments Collection = "departments"
	CollectionPositions   Collection = "positions"
)

const (
	BillPending BillStatus = "pending"
	BillPaid    BillStatus = "paid"
)

// Defaults applied to the expense appended when a bill is paid.
const (
	DefaultExpenseDescription = "No description provided"
	DefaultPaymentMethod      = "cash"
)

type (
	Collection string

	BillStatus string

	Date struct {
		time.Time
	}

	// YearMonth identifies a calendar month without a day.
	YearMonth struct {
		Year  int
		Month time.Month
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID            string `json:"id"`
		Amount        Money  `json:"amount"`
		Category      string `json:"category"`
		Date          Date   `json:"date"`
		Description   string `json:"description"`
		PaymentMethod string `json:"paymentMethod"`
		Name          string `json:"name,omitempty"`
		BillID        string `json:"billId,omitempty"` // set when the expense was produced by paying a bill
	}

	Bill struct {
		ID          string     `json:"id"`
		Name        string     `json:"name"`
		Amount      Money      `json:"amount"`
		DueDate     Date       `json:"dueDate"`
		Description string     `json:"description"`
		Category    string     `json:"category"`
		Status      BillStatus `json:"status"`
	}

	Budget struct {
		ID              string    `json:"id"`
		Category        string    `json:"category"`
		AllocatedAmount Money     `json:"allocatedAmount"`
		Month           YearMonth `json:"month"`
		StartDate       Date      `json:"startDate"`
		EndDate         Date      `json:"endDate"`
	}

	Employee struct {
		ID         string
		Name       string
		Email      string
		Phone      string
		Department string
		Position   string
		Salary     Money
	}

	Department struct {
		ID   string
		Name string
	}

	Position struct {
		ID    string
		Title string
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrZeroDate      = errors.New("date cannot be zero")
)

// ReferenceCollections are stored and listed but never aggregated.
var ReferenceCollections = []Collection{CollectionEmployees, CollectionDepartments, CollectionPositions}

// IsReference reports whether c holds reference data.
func (c Collection) IsReference() bool {
	for _, r := range ReferenceCollections {
		if c == r {
			return true
		}
	}
	return false
}

// ParseCollection accepts the canonical names plus the "budgets" alias.
func ParseCollection(s string) (Collection, bool) {
	switch c := Collection(strings.ToLower(strings.TrimSpace(s))); c {
	case CollectionExpenses, CollectionBills, CollectionBudgets,
		CollectionEmployees, CollectionDepartments, CollectionPositions:
		return c, true
	case "budgets":
		return CollectionBudgets, true
	}
	return "", false
}

// NewDate creates a Date at midnight in loc (UTC when loc is nil).
func NewDate(year, month, day int, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// SameDay reports whether d and t fall on the same calendar day in t's location.
func (d Date) SameDay(t time.Time) bool {
	y1, m1, d1 := d.In(t.Location()).Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// YearMonthIn returns the calendar month of d in loc.
func (d Date) YearMonthIn(loc *time.Location) YearMonth {
	t := d.In(loc)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

// Contains reports whether t falls inside ym in t's location.
func (ym YearMonth) Contains(t time.Time) bool {
	return t.Year() == ym.Year && t.Month() == ym.Month
}

// Before orders months chronologically.
func (ym YearMonth) Before(o YearMonth) bool {
	if ym.Year != o.Year {
		return ym.Year < o.Year
	}
	return ym.Month < o.Month
}

func (m Money) Validate() error {
	if m.Cents < 0 || m.Cents > MaxCents {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Reason: "must be non-negative"}
	}
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	if len(e.Description) > 200 {
		return &ValidationError{Field: "description", Reason: "too long (max 200 characters)"}
	}
	return nil
}

func (b Bill) Validate() error {
	switch {
	case strings.TrimSpace(b.Name) == "":
		return &ValidationError{Field: "name", Reason: "is required"}
	case b.Amount.Validate() != nil:
		return &ValidationError{Field: "amount", Reason: "must be non-negative"}
	case b.DueDate.IsZero():
		return &ValidationError{Field: "dueDate", Reason: "is required"}
	case strings.TrimSpace(b.Description) == "":
		return &ValidationError{Field: "description", Reason: "is required"}
	case strings.TrimSpace(b.Category) == "":
		return &ValidationError{Field: "category", Reason: "is required"}
	}
	switch b.Status {
	case BillPending, BillPaid:
	default:
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", b.Status)}
	}
	return nil
}

// IsPaid reports whether the bill reached its terminal state.
func (b Bill) IsPaid() bool {
	return b.Status == BillPaid
}

func (b Budget) Validate() error {
	switch {
	case strings.TrimSpace(b.Category) == "":
		return &ValidationError{Field: "category", Reason: "is required"}
	case b.AllocatedAmount.Validate() != nil:
		return &ValidationError{Field: "allocatedAmount", Reason: "must be non-negative"}
	case b.Month.IsZero():
		return &ValidationError{Field: "month", Reason: "is required"}
	case b.StartDate.IsZero():
		return &ValidationError{Field: "startDate", Reason: "is required"}
	case b.EndDate.IsZero():
		return &ValidationError{Field: "endDate", Reason: "is required"}
	case b.StartDate.After(b.EndDate.Time):
		return &ValidationError{Field: "startDate", Reason: "must not be after endDate"}
	}
	return nil
}

// ActiveAt reports whether now falls inside [StartDate, EndDate], compared by
// calendar day in now's location.
func (b Budget) ActiveAt(now time.Time) bool {
	loc := now.Location()
	day := startOfDay(now)
	start := startOfDay(b.StartDate.In(loc))
	end := startOfDay(b.EndDate.In(loc))
	return !day.Before(start) && !day.After(end)
}

func (e Employee) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if err := e.Salary.Validate(); err != nil {
		return &ValidationError{Field: "salary", Reason: "must be non-negative"}
	}
	return nil
}

func (d Department) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	return nil
}

func (p Position) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MarshalText lets YearMonth key JSON objects.
func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

func (ym *YearMonth) UnmarshalText(b []byte) error {
	v, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = v
	return nil
}
