package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"salon/internal/docstore"
	"salon/internal/events"
	"salon/internal/finance"
	"salon/internal/models"
	"salon/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seedTransactions(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	inputs := []TransactionInput{
		{Description: "Manicure", Category: models.CategoryServices, Date: "2026-05-02", Amount: 100, Type: "revenue"},
		{Description: "Pedicure", Category: models.CategoryWork, Date: "2026-05-10", Amount: 50, Type: "receitas"},
		{Description: "Esmaltes", Category: "Material", Date: "2026-05-11", Amount: 30, Type: "expense"},
		{Description: "Aluguel", Category: "Fixas", Date: "2026-04-05", Amount: 70, Type: "despesas"},
		{Description: "Gel", Category: models.CategoryServices, Date: "2026-04-15", Amount: 80, Type: "revenue"},
		{Description: "Antigo", Category: models.CategoryWork, Date: "2025-10-15", Amount: 999, Type: "revenue"},
	}
	for _, in := range inputs {
		_, err := f.finance.AddTransaction(ctx, in)
		require.NoError(t, err)
	}
}

func TestFinanceService_AddTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.finance.AddTransaction(ctx, TransactionInput{
		Description: "Compra de algodão", Category: "Material", Date: "2026-05-12", Amount: 12.5, Type: "despesas",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionExpense, tx.Type)
	assert.Equal(t, time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC), tx.Date)
	assert.Equal(t, []string{events.EventTransactionRecorded}, f.bus.Types())
	f.sync.AssertCalled(t, "EnqueueTask", mock.Anything, models.SyncAppendTransaction, tx.ID, mock.Anything)

	_, err = f.finance.AddTransaction(ctx, TransactionInput{Description: "x", Category: "y", Date: "2026-05-12", Amount: 1, Type: "gift"})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "type", verrs[0].Field)

	_, err = f.finance.AddTransaction(ctx, TransactionInput{Description: "x", Category: "y", Date: "12/05/2026", Amount: 0, Type: "revenue"})
	require.ErrorAs(t, err, &verrs)

	require.NoError(t, f.finance.DeleteTransaction(ctx, tx.ID))
	assert.ErrorIs(t, f.finance.DeleteTransaction(ctx, tx.ID), docstore.ErrNotFound)
}

func TestFinanceService_ListAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedTransactions(t, f)

	may := finance.Filter{
		Type: finance.TypeAll,
		From: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
	}
	txs, err := f.finance.List(ctx, may)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "Esmaltes", txs[0].Description)

	summary, err := f.finance.Summary(ctx, may)
	require.NoError(t, err)
	assert.Equal(t, 150.0, summary.Totals.Revenue)
	assert.Equal(t, 30.0, summary.Totals.Expenses)
	assert.Equal(t, 120.0, summary.Totals.NetProfit)

	var total float64
	for _, share := range summary.RevenueByCategory {
		total += share.Percentage
	}
	assert.InDelta(t, 100, total, 0.001)

	search, err := f.finance.List(ctx, finance.Filter{Type: models.TransactionRevenue, Search: "cure"})
	require.NoError(t, err)
	assert.Len(t, search, 2)
}

func TestFinanceService_MonthlyRevenue(t *testing.T) {
	f := newFixture(t)
	seedTransactions(t, f)

	months, err := f.finance.MonthlyRevenue(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, months, 6)

	assert.Equal(t, "dez", months[0].Month)
	assert.Equal(t, "mai", months[5].Month)
	assert.Equal(t, 150.0, months[5].Revenue)
	assert.Equal(t, 80.0, months[4].Revenue)
	assert.Zero(t, months[0].Revenue)
}

func TestFinanceService_MonthlyRevenueLegacyType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// documents carried over from the old dashboard keep the Portuguese type
	_, err := f.store.Create(ctx, models.CollectionTransactions, map[string]interface{}{
		"description": "Pedicure",
		"category":    models.CategoryWork,
		"date":        time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
		"amount":      70,
		"type":        "receitas",
	})
	require.NoError(t, err)
	_, err = f.store.Create(ctx, models.CollectionTransactions, map[string]interface{}{
		"description": "Aluguel",
		"category":    "Fixas",
		"date":        time.Date(2026, 5, 11, 12, 0, 0, 0, time.UTC),
		"amount":      40,
		"type":        "despesas",
	})
	require.NoError(t, err)

	months, err := f.finance.MonthlyRevenue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, months, 1)
	assert.Equal(t, 70.0, months[0].Revenue)

	txs, err := f.finance.List(ctx, finance.Filter{Type: models.TransactionRevenue})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionRevenue, txs[0].Type)
}

func TestFinanceService_Overview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addService(t, "Manicure", 45, 60)
	seedTransactions(t, f)
	f.book(t, "Manicure", bookingDay, "10:00")
	f.book(t, "Manicure", bookingDay, "11:00")

	o, err := f.finance.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, o.AppointmentsThisMonth)
	assert.Equal(t, 1, o.ClientsThisMonth)
	assert.Equal(t, 150.0, o.RevenueThisMonth)
	assert.Equal(t, 80.0, o.RevenueLastMonth)
	assert.InDelta(t, 87.5, o.RevenueGrowth, 0.001)
	// the five latest by date leave out the oldest revenue
	assert.Equal(t, 230.0, o.RecentRevenue)

	recent, err := f.finance.Recent(ctx)
	require.NoError(t, err)
	assert.Len(t, recent, 5)

	popular, err := f.finance.PopularServices(ctx)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, "Manicure", popular[0].Name)
}

func TestFinanceService_Exports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedTransactions(t, f)

	var csvBuf bytes.Buffer
	report, err := f.finance.ExportCSV(ctx, finance.ReportExpenses, &csvBuf)
	require.NoError(t, err)
	assert.Equal(t, "Relatório de Despesas", report.Title)
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "Descrição,Categoria,Data,Valor,Tipo", lines[0])

	_, err = f.finance.ExportCSV(ctx, "anual", &csvBuf)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	var xlsxBuf bytes.Buffer
	require.NoError(t, f.finance.ExportXLSX(ctx, &xlsxBuf))
	wb, err := excelize.OpenReader(&xlsxBuf)
	require.NoError(t, err)
	defer wb.Close()
	assert.Len(t, wb.GetSheetList(), 4)
}
