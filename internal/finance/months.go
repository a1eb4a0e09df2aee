package finance

import (
	"fmt"
	"time"
)

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// MonthName returns the Portuguese month name.
func MonthName(m time.Month) string { return monthNames[m-1] }

// MonthLabel returns the short chart label, e.g. "out".
func MonthLabel(m time.Month) string {
	return string([]rune(monthNames[m-1])[:3])
}

// MonthRange is the half-open interval [Start, End) of a calendar month.
type MonthRange struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r MonthRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// MonthOf returns the calendar month containing t in t's location.
func MonthOf(t time.Time) MonthRange {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return MonthRange{
		Label: MonthLabel(start.Month()),
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}

// LastMonths returns the n calendar months ending with the month of now, oldest first.
func LastMonths(now time.Time, n int) []MonthRange {
	if n <= 0 {
		return nil
	}
	current := MonthOf(now).Start
	out := make([]MonthRange, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, MonthOf(current.AddDate(0, -i, 0)))
	}
	return out
}

// QuarterOf returns the calendar quarter containing t and its 1-based number.
func QuarterOf(t time.Time) (MonthRange, int) {
	q := (int(t.Month()) - 1) / 3
	start := time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, t.Location())
	return MonthRange{
		Label: fmt.Sprintf("Q%d %d", q+1, t.Year()),
		Start: start,
		End:   start.AddDate(0, 3, 0),
	}, q + 1
}

// MonthRevenue is one bar of the revenue chart.
type MonthRevenue struct {
	Month   string    `json:"month"`
	Start   time.Time `json:"start"`
	Revenue float64   `json:"revenue"`
}
