package finance

import (
	"sort"
	"strings"
	"time"

	"salon/internal/models"
)

// TypeAll disables the type filter.
const TypeAll = "all"

// Filter selects transactions by type, description substring and an
// inclusive date range. Zero values disable the corresponding criterion.
type Filter struct {
	Type   string    `json:"type"`
	Search string    `json:"search"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

func (f Filter) match(t *models.Transaction) bool {
	if f.Type != "" && f.Type != TypeAll && t.Type != f.Type {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(f.Search)) {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To) {
		return false
	}
	return true
}

// Apply returns the transactions matching f, preserving order.
func Apply(txs []*models.Transaction, f Filter) []*models.Transaction {
	out := make([]*models.Transaction, 0, len(txs))
	for _, t := range txs {
		if f.match(t) {
			out = append(out, t)
		}
	}
	return out
}

type Totals struct {
	Revenue   float64 `json:"revenue"`
	Expenses  float64 `json:"expenses"`
	NetProfit float64 `json:"netProfit"`
}

func Sum(txs []*models.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Type {
		case models.TransactionRevenue:
			t.Revenue += tx.Amount
		case models.TransactionExpense:
			t.Expenses += tx.Amount
		}
	}
	t.NetProfit = t.Revenue - t.Expenses
	return t
}

type CategoryShare struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// CategoryBreakdown returns each category's share of the total of typ,
// sorted by category name. Percentages are 0 when the total is 0.
func CategoryBreakdown(txs []*models.Transaction, typ string) []CategoryShare {
	amounts := make(map[string]float64)
	var total float64
	for _, tx := range txs {
		if tx.Type != typ {
			continue
		}
		amounts[tx.Category] += tx.Amount
		total += tx.Amount
	}

	out := make([]CategoryShare, 0, len(amounts))
	for name, amount := range amounts {
		share := CategoryShare{Name: name, Amount: amount}
		if total != 0 {
			share.Percentage = amount / total * 100
		}
		out = append(out, share)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Growth returns the percentage change from last to current, 0 when last is 0.
func Growth(current, last float64) float64 {
	if last == 0 {
		return 0
	}
	return (current - last) / last * 100
}
