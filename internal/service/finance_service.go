package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"salon/internal/docstore"
	"salon/internal/domain"
	"salon/internal/export"
	"salon/internal/finance"
	"salon/internal/models"
	"salon/internal/repository"
	"salon/internal/validation"

	"github.com/rs/zerolog"
)

// recentTransactions is the size of the "latest transactions" card.
const recentTransactions = 5

// popularServicesLimit is how many services the popularity chart shows by name.
const popularServicesLimit = 4

type FinanceService struct {
	transactions *repository.Collection[models.Transaction, *models.Transaction]
	appointments *repository.Collection[models.Appointment, *models.Appointment]
	eventBus     domain.EventPublisher
	syncWorker   domain.SyncWorker
	location     *time.Location
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewFinanceService(store domain.DocumentStore, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, location *time.Location, logger *zerolog.Logger) *FinanceService {
	if location == nil {
		location = time.Local
	}
	return &FinanceService{
		transactions: repository.NewCollection[models.Transaction](store, models.CollectionTransactions),
		appointments: repository.NewCollection[models.Appointment](store, models.CollectionAppointments),
		eventBus:     eventBus,
		syncWorker:   syncWorker,
		location:     location,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *FinanceService) clock() time.Time { return s.now().In(s.location) }

// AddTransaction records a manual revenue or expense entry.
func (s *FinanceService) AddTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	typ := models.NormalizeTransactionType(in.Type)
	if typ != models.TransactionRevenue && typ != models.TransactionExpense {
		return nil, validation.Field("type", "must be one of: revenue expense")
	}
	date, err := parseDay("date", in.Date, s.location)
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		Description: trimmed(in.Description),
		Category:    trimmed(in.Category),
		Date:        date,
		Amount:      in.Amount,
		Type:        typ,
	}
	if _, err := s.transactions.Add(ctx, t); err != nil {
		return nil, fmt.Errorf("add transaction: %w", err)
	}

	s.logger.Info().Str("transaction_id", t.ID).Str("type", t.Type).Float64("amount", t.Amount).Msg("Transaction recorded")
	publishTransaction(s.eventBus, s.logger, t, "")
	enqueueSync(ctx, s.syncWorker, s.logger, models.SyncAppendTransaction, t.ID, t)
	return t, nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, id string) error {
	return s.transactions.Delete(ctx, id)
}

// List returns the transactions matching f, newest first. The date range is
// applied by the store, the rest in memory.
func (s *FinanceService) List(ctx context.Context, f finance.Filter) ([]*models.Transaction, error) {
	q := docstore.NewQuery().OrderBy("date", true)
	if !f.From.IsZero() {
		q = q.Where("date", docstore.OpGte, f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("date", docstore.OpLte, f.To)
	}
	txs, err := s.transactions.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return finance.Apply(txs, f), nil
}

// Summary holds the totals and category breakdowns of a filtered list.
type Summary struct {
	Totals            finance.Totals          `json:"totals"`
	RevenueByCategory []finance.CategoryShare `json:"revenueByCategory"`
	ExpenseByCategory []finance.CategoryShare `json:"expenseByCategory"`
}

func (s *FinanceService) Summary(ctx context.Context, f finance.Filter) (Summary, error) {
	txs, err := s.List(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Totals:            finance.Sum(txs),
		RevenueByCategory: finance.CategoryBreakdown(txs, models.TransactionRevenue),
		ExpenseByCategory: finance.CategoryBreakdown(txs, models.TransactionExpense),
	}, nil
}

// MonthlyRevenue returns revenue per calendar month for the last months
// months, oldest first. Each month is its own range query.
func (s *FinanceService) MonthlyRevenue(ctx context.Context, months int) ([]finance.MonthRevenue, error) {
	if months <= 0 {
		months = 6
	}
	ranges := finance.LastMonths(s.clock(), months)
	out := make([]finance.MonthRevenue, 0, len(ranges))
	for _, r := range ranges {
		q := docstore.NewQuery().
			Where("type", docstore.OpIn, models.TransactionTypeValues(models.TransactionRevenue)).
			Where("date", docstore.OpGte, r.Start).
			Where("date", docstore.OpLt, r.End)
		txs, err := s.transactions.Find(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("revenue for %s: %w", r.Label, err)
		}
		out = append(out, finance.MonthRevenue{
			Month:   r.Label,
			Start:   r.Start,
			Revenue: finance.Sum(txs).Revenue,
		})
	}
	return out, nil
}

func (s *FinanceService) Reports(ctx context.Context) ([]finance.Report, error) {
	txs, err := s.transactions.Find(ctx, docstore.NewQuery().OrderBy("date", true))
	if err != nil {
		return nil, err
	}
	return finance.Reports(txs, s.clock()), nil
}

func (s *FinanceService) Report(ctx context.Context, key string) (finance.Report, error) {
	reports, err := s.Reports(ctx)
	if err != nil {
		return finance.Report{}, err
	}
	report, ok := finance.FindReport(reports, key)
	if !ok {
		return finance.Report{}, fmt.Errorf("%w: report %q", docstore.ErrNotFound, key)
	}
	return report, nil
}

func (s *FinanceService) Overview(ctx context.Context) (finance.Overview, error) {
	appts, err := s.appointments.List(ctx)
	if err != nil {
		return finance.Overview{}, err
	}
	txs, err := s.transactions.List(ctx)
	if err != nil {
		return finance.Overview{}, err
	}
	recent, err := s.transactions.Find(ctx, docstore.NewQuery().OrderBy("date", true).Limit(recentTransactions))
	if err != nil {
		return finance.Overview{}, err
	}
	return finance.BuildOverview(s.clock(), appts, txs, recent), nil
}

// Recent returns the latest transactions by date.
func (s *FinanceService) Recent(ctx context.Context) ([]*models.Transaction, error) {
	return s.transactions.Find(ctx, docstore.NewQuery().OrderBy("date", true).Limit(recentTransactions))
}

func (s *FinanceService) PopularServices(ctx context.Context) ([]finance.ServiceShare, error) {
	appts, err := s.appointments.List(ctx)
	if err != nil {
		return nil, err
	}
	return finance.PopularServices(appts, popularServicesLimit), nil
}

// ExportCSV writes the report with key as CSV.
func (s *FinanceService) ExportCSV(ctx context.Context, key string, w io.Writer) (finance.Report, error) {
	report, err := s.Report(ctx, key)
	if err != nil {
		return finance.Report{}, err
	}
	return report, export.WriteCSV(w, report)
}

// ExportXLSX writes every report into one workbook.
func (s *FinanceService) ExportXLSX(ctx context.Context, w io.Writer) error {
	reports, err := s.Reports(ctx)
	if err != nil {
		return err
	}
	return export.WriteXLSX(w, reports)
}
