package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"salon/internal/finance"
	"salon/internal/models"
)

var csvHeader = []string{"Descrição", "Categoria", "Data", "Valor", "Tipo"}

// WriteCSV writes the report rows with the Descrição,Categoria,Data,Valor,Tipo header.
func WriteCSV(w io.Writer, report finance.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range report.Transactions {
		if err := cw.Write(row(t)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(t *models.Transaction) []string {
	return []string{
		t.Description,
		t.Category,
		t.Date.Format(models.DateLayout),
		strconv.FormatFloat(t.Amount, 'f', 2, 64),
		typeLabel(t.Type),
	}
}

func typeLabel(typ string) string {
	switch typ {
	case models.TransactionRevenue:
		return "Receita"
	case models.TransactionExpense:
		return "Despesa"
	}
	return typ
}

// FileName returns the download name of a report.
func FileName(report finance.Report, ext string) string {
	return report.Title + "." + ext
}
