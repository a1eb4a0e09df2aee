package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"salon/internal/finance"
	"salon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReports() []finance.Report {
	txs := []*models.Transaction{
		{Description: "Manicure, gel", Category: models.CategoryWork, Type: models.TransactionRevenue, Amount: 50, Date: time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)},
		{Description: "Aluguel", Category: "Fixas", Type: models.TransactionExpense, Amount: 30.5, Date: time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC)},
	}
	return finance.Reports(txs, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC))
}

func TestWriteCSV(t *testing.T) {
	report, ok := finance.FindReport(sampleReports(), finance.ReportMonthly)
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, report))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Descrição", "Categoria", "Data", "Valor", "Tipo"}, records[0])
	assert.Equal(t, []string{"Manicure, gel", models.CategoryWork, "2026-05-02", "50.00", "Receita"}, records[1])
	assert.Equal(t, "30.50", records[2][3])
	assert.Equal(t, "Relatório Mensal - maio 2026.csv", FileName(report, "csv"))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleReports()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{finance.ReportMonthly, finance.ReportQuarterly, finance.ReportServices, finance.ReportExpenses}, f.GetSheetList())

	title, err := f.GetCellValue(finance.ReportMonthly, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Relatório Mensal - maio 2026", title)

	desc, err := f.GetCellValue(finance.ReportMonthly, "A4")
	require.NoError(t, err)
	assert.Equal(t, "Manicure, gel", desc)
}

func TestSaveXLSX(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	path, err := SaveXLSX(dir, sampleReports(), time.Date(2026, 5, 20, 8, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, "financas_2026-05-20_083000.xlsx", filepath.Base(path))
}
