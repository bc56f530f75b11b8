package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Document is a single record as held by the record store: an opaque id plus
// a free-form field map.
type Document struct {
	ID     string
	Fields map[string]any
}

// Decoded pairs the well-formed records of a snapshot with the documents that
// had to be excluded.
type Decoded[T any] struct {
	Records []T
	Skipped []*MalformedRecordError
}

var errMissing = errors.New("missing")

// DecodeExpenses converts expense documents. Documents with a missing or
// unparseable amount or date are skipped and reported. Dates without an
// offset are read as calendar dates in loc (UTC when nil).
func DecodeExpenses(docs []Document, loc *time.Location) Decoded[Expense] {
	out := Decoded[Expense]{Records: make([]Expense, 0, len(docs))}
	for _, d := range docs {
		e, err := DecodeExpense(d, loc)
		if err != nil {
			out.Skipped = append(out.Skipped, err)
			continue
		}
		out.Records = append(out.Records, e)
	}
	return out
}

// DecodeExpense converts a single expense document.
func DecodeExpense(d Document, loc *time.Location) (Expense, *MalformedRecordError) {
	amount, err := ParseAmount(d.Fields["amount"])
	if err != nil {
		return Expense{}, malformed(CollectionExpenses, d.ID, "amount", err)
	}
	date, err := ParseDate(d.Fields["date"], loc)
	if err != nil {
		return Expense{}, malformed(CollectionExpenses, d.ID, "date", err)
	}
	return Expense{
		ID:            d.ID,
		Amount:        amount,
		Category:      stringField(d.Fields, "category"),
		Date:          date,
		Description:   stringField(d.Fields, "description"),
		PaymentMethod: stringField(d.Fields, "paymentMethod"),
		Name:          stringField(d.Fields, "name"),
		BillID:        stringField(d.Fields, "billId"),
	}, nil
}

// DecodeBills converts bill documents.
func DecodeBills(docs []Document, loc *time.Location) Decoded[Bill] {
	out := Decoded[Bill]{Records: make([]Bill, 0, len(docs))}
	for _, d := range docs {
		b, err := DecodeBill(d, loc)
		if err != nil {
			out.Skipped = append(out.Skipped, err)
			continue
		}
		out.Records = append(out.Records, b)
	}
	return out
}

// DecodeBill converts a single bill document.
func DecodeBill(d Document, loc *time.Location) (Bill, *MalformedRecordError) {
	amount, err := ParseAmount(d.Fields["amount"])
	if err != nil {
		return Bill{}, malformed(CollectionBills, d.ID, "amount", err)
	}
	due, err := ParseDate(d.Fields["dueDate"], loc)
	if err != nil {
		return Bill{}, malformed(CollectionBills, d.ID, "dueDate", err)
	}
	return Bill{
		ID:          d.ID,
		Name:        stringField(d.Fields, "name"),
		Amount:      amount,
		DueDate:     due,
		Description: stringField(d.Fields, "description"),
		Category:    stringField(d.Fields, "category"),
		Status:      ParseBillStatus(stringField(d.Fields, "status")),
	}, nil
}

// ParseBillStatus normalises a stored status. Anything but "paid" is pending.
func ParseBillStatus(s string) BillStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(BillPaid)) {
		return BillPaid
	}
	return BillPending
}

// DecodeBudgets converts budget documents.
func DecodeBudgets(docs []Document, loc *time.Location) Decoded[Budget] {
	out := Decoded[Budget]{Records: make([]Budget, 0, len(docs))}
	for _, d := range docs {
		b, err := DecodeBudget(d, loc)
		if err != nil {
			out.Skipped = append(out.Skipped, err)
			continue
		}
		out.Records = append(out.Records, b)
	}
	return out
}

// DecodeBudget converts a single budget document. The month is optional in
// stored data and falls back to the start date's month.
func DecodeBudget(d Document, loc *time.Location) (Budget, *MalformedRecordError) {
	amount, err := ParseAmount(d.Fields["allocatedAmount"])
	if err != nil {
		return Budget{}, malformed(CollectionBudgets, d.ID, "allocatedAmount", err)
	}
	start, err := ParseDate(d.Fields["startDate"], loc)
	if err != nil {
		return Budget{}, malformed(CollectionBudgets, d.ID, "startDate", err)
	}
	end, err := ParseDate(d.Fields["endDate"], loc)
	if err != nil {
		return Budget{}, malformed(CollectionBudgets, d.ID, "endDate", err)
	}
	if start.After(end.Time) {
		return Budget{}, malformed(CollectionBudgets, d.ID, "startDate", errors.New("after endDate"))
	}
	month := YearMonth{Year: start.Year(), Month: start.Month()}
	if s := stringField(d.Fields, "month"); s != "" {
		if month, err = ParseYearMonth(s); err != nil {
			return Budget{}, malformed(CollectionBudgets, d.ID, "month", err)
		}
	}
	return Budget{
		ID:              d.ID,
		Category:        stringField(d.Fields, "category"),
		AllocatedAmount: amount,
		Month:           month,
		StartDate:       start,
		EndDate:         end,
	}, nil
}

// DecodeEmployee converts an employee document; only the salary can be malformed.
func DecodeEmployee(d Document) (Employee, *MalformedRecordError) {
	var salary Money
	if v, ok := d.Fields["salary"]; ok && v != nil && v != "" {
		var err error
		if salary, err = ParseAmount(v); err != nil {
			return Employee{}, malformed(CollectionEmployees, d.ID, "salary", err)
		}
	}
	return Employee{
		ID:         d.ID,
		Name:       stringField(d.Fields, "name"),
		Email:      stringField(d.Fields, "email"),
		Phone:      stringField(d.Fields, "phone"),
		Department: stringField(d.Fields, "department"),
		Position:   stringField(d.Fields, "position"),
		Salary:     salary,
	}, nil
}

// ParseDate converts a document field into a Date in loc (UTC when nil).
// Accepted forms are time.Time, RFC 3339 and YYYY-MM-DD strings,
// {seconds, nanoseconds} timestamp objects and numeric Unix seconds. Strings
// without an offset name a wall-clock time in loc.
func ParseDate(v any, loc *time.Location) (Date, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch x := v.(type) {
	case nil:
		return Date{}, errMissing
	case time.Time:
		if x.IsZero() {
			return Date{}, ErrZeroDate
		}
		return Date{Time: x.In(loc)}, nil
	case Date:
		if err := x.Validate(); err != nil {
			return Date{}, err
		}
		return Date{Time: x.In(loc)}, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return Date{}, errMissing
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return Date{Time: t.In(loc)}, nil
		}
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return Date{Time: t}, nil
			}
		}
		return Date{}, fmt.Errorf("unrecognised date %q", s)
	case map[string]any:
		secs, ok := numberField(x, "seconds")
		if !ok {
			return Date{}, errors.New("timestamp object without seconds")
		}
		nanos, _ := numberField(x, "nanoseconds")
		return Date{Time: time.Unix(int64(secs), int64(nanos)).In(loc)}, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
			return Date{}, fmt.Errorf("invalid unix time %v", x)
		}
		return Date{Time: time.Unix(int64(x), 0).In(loc)}, nil
	case int64:
		if x <= 0 {
			return Date{}, fmt.Errorf("invalid unix time %d", x)
		}
		return Date{Time: time.Unix(x, 0).In(loc)}, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Date{}, err
		}
		return ParseDate(f, loc)
	default:
		return Date{}, fmt.Errorf("unsupported date type %T", v)
	}
}

// ExpenseFields is the document form of an expense.
func ExpenseFields(e Expense) map[string]any {
	f := map[string]any{
		"amount":        e.Amount.Float(),
		"category":      e.Category,
		"date":          e.Date.UTC().Format(time.RFC3339Nano),
		"description":   e.Description,
		"paymentMethod": e.PaymentMethod,
	}
	if e.Name != "" {
		f["name"] = e.Name
	}
	if e.BillID != "" {
		f["billId"] = e.BillID
	}
	return f
}

// BillFields is the document form of a bill.
func BillFields(b Bill) map[string]any {
	return map[string]any{
		"name":        b.Name,
		"amount":      b.Amount.Float(),
		"dueDate":     b.DueDate.UTC().Format(time.RFC3339Nano),
		"description": b.Description,
		"category":    b.Category,
		"status":      string(b.Status),
	}
}

// BudgetFields is the document form of a budget.
func BudgetFields(b Budget) map[string]any {
	return map[string]any{
		"category":        b.Category,
		"allocatedAmount": b.AllocatedAmount.Float(),
		"month":           b.Month.String(),
		"startDate":       b.StartDate.Format("2006-01-02"),
		"endDate":         b.EndDate.Format("2006-01-02"),
	}
}

// EmployeeFields is the document form of an employee.
func EmployeeFields(e Employee) map[string]any {
	return map[string]any{
		"name":       e.Name,
		"email":      e.Email,
		"phone":      e.Phone,
		"department": e.Department,
		"position":   e.Position,
		"salary":     e.Salary.Float(),
	}
}

func malformed(c Collection, id, field string, err error) *MalformedRecordError {
	return &MalformedRecordError{Collection: c, ID: id, Field: field, Err: err}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func numberField(fields map[string]any, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// BillStatusOf reads only the status of a bill document.
func BillStatusOf(d Document) BillStatus {
	return ParseBillStatus(stringField(d.Fields, "status"))
}
