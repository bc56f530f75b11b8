package core

import (
	"sort"
	"strings"
	"time"
)

// BillClassification partitions bills by lifecycle state. Every bill lands
// in exactly one list.
type BillClassification struct {
	DueThisMonth []Bill `json:"dueThisMonth"`
	Upcoming     []Bill `json:"upcoming"`
	Paid         []Bill `json:"paid"`
}

// ClassifyBills splits bills relative to the calendar month of now. Unpaid
// bills due in an earlier month count as upcoming. Each list is ordered by
// due date.
func ClassifyBills(bills []Bill, now time.Time) BillClassification {
	out := BillClassification{
		DueThisMonth: []Bill{},
		Upcoming:     []Bill{},
		Paid:         []Bill{},
	}
	current := YearMonth{Year: now.Year(), Month: now.Month()}
	for _, b := range bills {
		switch {
		case b.IsPaid():
			out.Paid = append(out.Paid, b)
		case b.DueDate.YearMonthIn(now.Location()) == current:
			out.DueThisMonth = append(out.DueThisMonth, b)
		default:
			out.Upcoming = append(out.Upcoming, b)
		}
	}
	byDue := func(s []Bill) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].DueDate.Before(s[j].DueDate.Time) })
	}
	byDue(out.DueThisMonth)
	byDue(out.Upcoming)
	byDue(out.Paid)
	return out
}

// PaidExpense builds the expense appended when bill is paid at now.
func PaidExpense(bill Bill, now time.Time) Expense {
	desc := strings.TrimSpace(bill.Description)
	if desc == "" {
		desc = DefaultExpenseDescription
	}
	return Expense{
		Amount:        bill.Amount,
		Category:      bill.Category,
		Date:          Date{Time: now},
		Description:   desc,
		PaymentMethod: DefaultPaymentMethod,
		Name:          bill.Name,
		BillID:        bill.ID,
	}
}

// ValidateForPayment checks what MarkPaid needs before any write.
func ValidateForPayment(bill Bill) error {
	if strings.TrimSpace(bill.ID) == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if strings.TrimSpace(bill.Category) == "" {
		return &ValidationError{Field: "category", Reason: "is required to record the payment"}
	}
	if err := bill.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Reason: "must be non-negative"}
	}
	if bill.IsPaid() {
		return ErrAlreadyPaid
	}
	return nil
}

// UpcomingUnpaid returns the unpaid bills shown on the dashboard, ordered by
// due date.
func UpcomingUnpaid(bills []Bill) []Bill {
	out := []Bill{}
	for _, b := range bills {
		if !b.IsPaid() {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate.Time) })
	return out
}
