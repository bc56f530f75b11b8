package core

import "time"

// WeekDays is the width of the trailing daily series.
const WeekDays = 7

// AggregateResult is the derived view of an expense snapshot.
type AggregateResult struct {
	TotalToDate Money            `json:"totalToDate"`
	TotalToday  Money            `json:"totalToday"`
	ByCategory  map[string]Money `json:"byCategory"`

	// Monthly buckets by calendar month only, so months of different years
	// share a slot. ByYearMonth keeps them apart.
	Monthly           [12]Money            `json:"monthly"`
	ByYearMonth       map[YearMonth]Money  `json:"byYearMonth"`
	MonthlyByCategory [12]map[string]Money `json:"monthlyByCategory"`

	// Weekly[6] is the day of now, Weekly[0] six days before.
	Weekly [WeekDays]Money `json:"weekly"`

	Count int `json:"count"`
}

// Aggregate folds expenses into totals relative to now. Calendar arithmetic
// uses now's location. It keeps no state between calls.
func Aggregate(expenses []Expense, now time.Time) AggregateResult {
	loc := now.Location()
	res := AggregateResult{
		ByCategory:  map[string]Money{},
		ByYearMonth: map[YearMonth]Money{},
		Count:       len(expenses),
	}
	for i := range res.MonthlyByCategory {
		res.MonthlyByCategory[i] = map[string]Money{}
	}

	for _, e := range expenses {
		local := e.Date.In(loc)
		amt := e.Amount

		res.TotalToDate = res.TotalToDate.Add(amt)
		if e.Date.SameDay(now) {
			res.TotalToday = res.TotalToday.Add(amt)
		}

		m := local.Month() - 1
		res.Monthly[m] = res.Monthly[m].Add(amt)
		ym := YearMonth{Year: local.Year(), Month: local.Month()}
		res.ByYearMonth[ym] = res.ByYearMonth[ym].Add(amt)

		if e.Category != "" {
			res.ByCategory[e.Category] = res.ByCategory[e.Category].Add(amt)
			res.MonthlyByCategory[m][e.Category] = res.MonthlyByCategory[m][e.Category].Add(amt)
		}

		if idx, ok := weekIndex(e.Date.Time, now); ok {
			res.Weekly[idx] = res.Weekly[idx].Add(amt)
		}
	}
	return res
}

// weekIndex maps a date to its slot in the trailing week ending at now.
func weekIndex(date, now time.Time) (int, bool) {
	diff := now.Sub(date)
	if diff < 0 {
		return 0, false
	}
	days := int(diff / (24 * time.Hour))
	if days >= WeekDays {
		return 0, false
	}
	return WeekDays - 1 - days, true
}

// WeekLabels returns the calendar day of each weekly slot.
func WeekLabels(now time.Time) [WeekDays]time.Time {
	var out [WeekDays]time.Time
	for i := range out {
		out[i] = now.AddDate(0, 0, i-(WeekDays-1))
	}
	return out
}
