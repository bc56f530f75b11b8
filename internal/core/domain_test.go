package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1, nil), true},
		{NewDate(2025, 12, 31, time.UTC), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 0}).Validate(); err != nil {
		t.Fatalf("expected zero to be valid, got %v", err)
	}
	if err := (Money{Cents: -1}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{Date: NewDate(2025, 1, 1, nil), Amount: Money{Cents: 100}, Category: "Food"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Expense{
		{Amount: Money{Cents: 1}},
		{Date: NewDate(2025, 1, 1, nil), Amount: Money{Cents: -1}},
	}
	for i, e := range bads {
		if err := e.Validate(); !IsValidation(err) {
			t.Fatalf("case %d expected ValidationError, got %v", i, err)
		}
	}
}

func TestBillValidate(t *testing.T) {
	good := Bill{
		Name:        "Rent",
		Amount:      Money{Cents: 90000},
		DueDate:     NewDate(2025, 3, 1, nil),
		Description: "March",
		Category:    "Housing",
		Status:      BillPending,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutations := map[string]func(*Bill){
		"name":        func(b *Bill) { b.Name = " " },
		"amount":      func(b *Bill) { b.Amount = Money{Cents: -5} },
		"dueDate":     func(b *Bill) { b.DueDate = Date{} },
		"description": func(b *Bill) { b.Description = "" },
		"category":    func(b *Bill) { b.Category = "" },
		"status":      func(b *Bill) { b.Status = "overdue" },
	}
	for field, mut := range mutations {
		b := good
		mut(&b)
		var ve *ValidationError
		if err := b.Validate(); !errors.As(err, &ve) || ve.Field != field {
			t.Fatalf("%s: expected ValidationError on that field, got %v", field, err)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{
		Category:        "Food",
		AllocatedAmount: Money{Cents: 10000},
		Month:           YearMonth{Year: 2025, Month: time.May},
		StartDate:       NewDate(2025, 5, 1, nil),
		EndDate:         NewDate(2025, 5, 31, nil),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	sameDay := good
	sameDay.EndDate = sameDay.StartDate
	if err := sameDay.Validate(); err != nil {
		t.Fatalf("start == end should be valid, got %v", err)
	}
	inverted := good
	inverted.StartDate, inverted.EndDate = good.EndDate, good.StartDate
	if err := inverted.Validate(); !IsValidation(err) {
		t.Fatalf("expected ValidationError for start after end, got %v", err)
	}
	noMonth := good
	noMonth.Month = YearMonth{}
	if err := noMonth.Validate(); !IsValidation(err) {
		t.Fatalf("expected ValidationError for missing month, got %v", err)
	}
}

func TestBudgetActiveAt(t *testing.T) {
	b := Budget{StartDate: NewDate(2025, 5, 1, nil), EndDate: NewDate(2025, 5, 31, nil)}
	cases := []struct {
		now    time.Time
		active bool
	}{
		{time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 5, 31, 23, 59, 0, 0, time.UTC), true},
		{time.Date(2025, 4, 30, 23, 59, 0, 0, time.UTC), false},
		{time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := b.ActiveAt(tc.now); got != tc.active {
			t.Fatalf("ActiveAt(%v) = %v, want %v", tc.now, got, tc.active)
		}
	}
}

func TestParseCollection(t *testing.T) {
	cases := map[string]Collection{
		"expenses":  CollectionExpenses,
		"Bills":     CollectionBills,
		"budget":    CollectionBudgets,
		"budgets":   CollectionBudgets,
		"positions": CollectionPositions,
	}
	for in, want := range cases {
		got, ok := ParseCollection(in)
		if !ok || got != want {
			t.Fatalf("ParseCollection(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseCollection("users"); ok {
		t.Fatalf("expected unknown collection to be rejected")
	}
	if !CollectionEmployees.IsReference() || CollectionBills.IsReference() {
		t.Fatalf("unexpected reference classification")
	}
}

func TestYearMonth(t *testing.T) {
	ym, err := ParseYearMonth("2024-02")
	if err != nil {
		t.Fatal(err)
	}
	if ym.String() != "2024-02" {
		t.Fatalf("unexpected string %s", ym)
	}
	if !ym.Before(YearMonth{Year: 2024, Month: time.March}) || ym.Before(YearMonth{Year: 2023, Month: time.December}) {
		t.Fatalf("unexpected ordering")
	}
	if !ym.Contains(time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected leap day to be contained")
	}
	if _, err := ParseYearMonth("2024/02"); err == nil {
		t.Fatalf("expected parse error")
	}
}
