package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salon/internal/export"
	"salon/internal/finance"
	"salon/internal/models"
	"salon/internal/service"
	"salon/internal/validation"

	"github.com/gorilla/mux"
)

const (
	defaultRevenueMonths = 6
	maxRevenueMonths     = 24
)

// parseFilter reads type, search, from and to. The to date includes its whole day.
func (s *HTTPServer) parseFilter(r *http.Request) (finance.Filter, error) {
	q := r.URL.Query()
	f := finance.Filter{
		Type:   strings.TrimSpace(q.Get("type")),
		Search: strings.TrimSpace(q.Get("search")),
	}
	if f.Type != "" && f.Type != "all" {
		f.Type = models.NormalizeTransactionType(f.Type)
		if f.Type != models.TransactionRevenue && f.Type != models.TransactionExpense {
			return finance.Filter{}, validation.Field("type", "must be one of: all revenue expense")
		}
	}

	from, ok, err := s.parseDateParam(r, "from", false)
	if err != nil {
		return finance.Filter{}, err
	}
	if ok {
		f.From = from
	}
	to, ok, err := s.parseDateParam(r, "to", false)
	if err != nil {
		return finance.Filter{}, err
	}
	if ok {
		f.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return finance.Filter{}, validation.Field("to", "must not be before from")
	}
	return f, nil
}

func (s *HTTPServer) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	txs, err := s.svc.Finance.List(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"totals":       finance.Sum(txs),
	})
}

func (s *HTTPServer) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var in service.TransactionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	tx, err := s.svc.Finance.AddTransaction(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *HTTPServer) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Finance.DeleteTransaction(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleTransactionSummary(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	summary, err := s.svc.Finance.Summary(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Finance.Recent(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *HTTPServer) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.svc.Finance.Reports(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *HTTPServer) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Finance.Report(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleReportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	report, err := s.svc.Finance.ExportCSV(r.Context(), mux.Vars(r)["key"], &buf)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", export.FileName(report, "csv"), buf.Bytes())
}

func (s *HTTPServer) handleReportsXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.Finance.ExportXLSX(r.Context(), &buf); err != nil {
		s.writeServiceError(w, err)
		return
	}
	name := fmt.Sprintf("financas_%s.xlsx", time.Now().In(s.location).Format(models.DateLayout))
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", name, buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *HTTPServer) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.svc.Finance.Overview(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// GET /dashboard/stats/revenue[?months=6]
func (s *HTTPServer) handleMonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	months := defaultRevenueMonths
	if raw := strings.TrimSpace(r.URL.Query().Get("months")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRevenueMonths {
			s.writeServiceError(w, validation.Field("months", fmt.Sprintf("must be between 1 and %d", maxRevenueMonths)))
			return
		}
		months = n
	}
	revenue, err := s.svc.Finance.MonthlyRevenue(r.Context(), months)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": revenue})
}

func (s *HTTPServer) handlePopularServices(w http.ResponseWriter, r *http.Request) {
	shares, err := s.svc.Finance.PopularServices(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": shares})
}
