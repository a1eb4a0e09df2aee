package finance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"salon/internal/models"
)

// Ключи отчетов
const (
	ReportMonthly   = "mensal"
	ReportQuarterly = "trimestral"
	ReportServices  = "servicos"
	ReportExpenses  = "despesas"
)

type Report struct {
	Key          string                `json:"key"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Totals       Totals                `json:"totals"`
	Transactions []*models.Transaction `json:"transactions"`
}

// Reports builds the standard report set relative to now.
func Reports(txs []*models.Transaction, now time.Time) []Report {
	month := MonthOf(now)
	quarter, _ := QuarterOf(now)

	reports := []Report{
		{
			Key:         ReportMonthly,
			Title:       fmt.Sprintf("Relatório Mensal - %s %d", MonthName(now.Month()), now.Year()),
			Description: "Resumo completo de receitas e despesas do mês",
			Transactions: selectTx(txs, func(t *models.Transaction) bool {
				return month.Contains(t.Date.In(now.Location()))
			}),
		},
		{
			Key:         ReportQuarterly,
			Title:       "Relatório Trimestral - " + quarter.Label,
			Description: "Análise financeira do trimestre atual",
			Transactions: selectTx(txs, func(t *models.Transaction) bool {
				return quarter.Contains(t.Date.In(now.Location()))
			}),
		},
		{
			Key:         ReportServices,
			Title:       "Relatório de Serviços",
			Description: "Detalhamento dos serviços mais lucrativos",
			Transactions: selectTx(txs, func(t *models.Transaction) bool {
				return t.IsRevenue() && t.Category == models.CategoryServices
			}),
		},
		{
			Key:          ReportExpenses,
			Title:        "Relatório de Despesas",
			Description:  "Análise detalhada de todas as despesas",
			Transactions: selectTx(txs, (*models.Transaction).IsExpense),
		},
	}
	for i := range reports {
		reports[i].Totals = Sum(reports[i].Transactions)
	}
	return reports
}

// FindReport returns the report with key.
func FindReport(reports []Report, key string) (Report, bool) {
	for _, r := range reports {
		if r.Key == key {
			return r, true
		}
	}
	return Report{}, false
}

func selectTx(txs []*models.Transaction, keep func(*models.Transaction) bool) []*models.Transaction {
	out := make([]*models.Transaction, 0)
	for _, t := range txs {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

type ServiceShare struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PopularServices ranks services by their share of appointments and keeps
// the top limit. Whatever share is left goes to an "Outros" entry.
func PopularServices(appts []*models.Appointment, limit int) []ServiceShare {
	if len(appts) == 0 {
		return []ServiceShare{}
	}
	counts := make(map[string]int)
	for _, a := range appts {
		counts[a.ServiceName]++
	}

	shares := make([]ServiceShare, 0, len(counts))
	for name, count := range counts {
		shares = append(shares, ServiceShare{
			Name:       name,
			Count:      count,
			Percentage: float64(count) / float64(len(appts)) * 100,
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Name < shares[j].Name
	})

	if limit <= 0 || len(shares) <= limit {
		return shares
	}
	top := shares[:limit]
	rest := ServiceShare{Name: models.CategoryOther}
	for _, s := range shares[limit:] {
		rest.Count += s.Count
		rest.Percentage += s.Percentage
	}
	return append(top, rest)
}

// Overview holds the dashboard cards.
type Overview struct {
	AppointmentsThisMonth int     `json:"appointmentsThisMonth"`
	AppointmentsLastMonth int     `json:"appointmentsLastMonth"`
	AppointmentsGrowth    float64 `json:"appointmentsGrowth"`
	ClientsThisMonth      int     `json:"clientsThisMonth"`
	ClientsLastMonth      int     `json:"clientsLastMonth"`
	ClientsGrowth         float64 `json:"clientsGrowth"`
	RevenueThisMonth      float64 `json:"revenueThisMonth"`
	RevenueLastMonth      float64 `json:"revenueLastMonth"`
	RevenueGrowth         float64 `json:"revenueGrowth"`
	RecentRevenue         float64 `json:"recentRevenue"`
}

// BuildOverview compares the month of now with the previous month.
// recent are the latest transactions whose revenue forms RecentRevenue.
func BuildOverview(now time.Time, appts []*models.Appointment, txs, recent []*models.Transaction) Overview {
	current := MonthOf(now)
	last := MonthOf(current.Start.AddDate(0, -1, 0))

	var curAppts, lastAppts []*models.Appointment
	for _, a := range appts {
		d := a.Date.In(now.Location())
		switch {
		case current.Contains(d):
			curAppts = append(curAppts, a)
		case last.Contains(d):
			lastAppts = append(lastAppts, a)
		}
	}

	var o Overview
	o.AppointmentsThisMonth = len(curAppts)
	o.AppointmentsLastMonth = len(lastAppts)
	o.AppointmentsGrowth = Growth(float64(o.AppointmentsThisMonth), float64(o.AppointmentsLastMonth))
	o.ClientsThisMonth = distinctClients(curAppts)
	o.ClientsLastMonth = distinctClients(lastAppts)
	o.ClientsGrowth = Growth(float64(o.ClientsThisMonth), float64(o.ClientsLastMonth))

	for _, t := range txs {
		if !t.IsRevenue() {
			continue
		}
		d := t.Date.In(now.Location())
		switch {
		case current.Contains(d):
			o.RevenueThisMonth += t.Amount
		case last.Contains(d):
			o.RevenueLastMonth += t.Amount
		}
	}
	o.RevenueGrowth = Growth(o.RevenueThisMonth, o.RevenueLastMonth)
	o.RecentRevenue = Sum(recent).Revenue
	return o
}

// Clients are told apart by email, or by name when the email is missing.
func distinctClients(appts []*models.Appointment) int {
	seen := make(map[string]struct{})
	for _, a := range appts {
		key := strings.ToLower(strings.TrimSpace(a.Email))
		if key == "" {
			key = "name:" + strings.ToLower(strings.TrimSpace(a.Name))
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}
