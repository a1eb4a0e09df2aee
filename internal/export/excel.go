package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"salon/internal/finance"
	"salon/internal/models"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX renders every report on its own sheet.
func WriteXLSX(w io.Writer, reports []finance.Report) error {
	f, err := buildWorkbook(reports)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook into dir and returns the file path.
func SaveXLSX(dir string, reports []finance.Report, now time.Time) (string, error) {
	f, err := buildWorkbook(reports)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export dir: %w", err)
	}
	filePath := filepath.Join(dir, fmt.Sprintf("financas_%s.xlsx", now.Format("2006-01-02_150405")))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}

func buildWorkbook(reports []finance.Report) (*excelize.File, error) {
	f := excelize.NewFile()

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating style: %w", err)
	}

	for i, report := range reports {
		// Имя листа ограничено 31 символом, поэтому используем ключ отчета
		sheet := report.Key
		index, err := f.NewSheet(sheet)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("error creating sheet: %w", err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := writeReportSheet(f, sheet, report, titleStyle, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	if len(reports) > 0 {
		_ = f.DeleteSheet("Sheet1")
	}
	return f, nil
}

func writeReportSheet(f *excelize.File, sheet string, report finance.Report, titleStyle, headerStyle int) error {
	_ = f.SetCellValue(sheet, "A1", report.Title)
	_ = f.MergeCell(sheet, "A1", "E1")
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	_ = f.SetCellValue(sheet, "A2", report.Description)

	for col, h := range csvHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 3)
		_ = f.SetCellValue(sheet, cell, h)
	}
	_ = f.SetCellStyle(sheet, "A3", "E3", headerStyle)

	for i, t := range report.Transactions {
		r := i + 4
		values := []interface{}{t.Description, t.Category, t.Date.Format(models.DateLayout), t.Amount, typeLabel(t.Type)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, r)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("error writing cell %s: %w", cell, err)
			}
		}
	}

	totalsRow := len(report.Transactions) + 5
	labels := []struct {
		name  string
		value float64
	}{
		{"Receitas", report.Totals.Revenue},
		{"Despesas", report.Totals.Expenses},
		{"Lucro", report.Totals.NetProfit},
	}
	for i, l := range labels {
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", totalsRow+i), l.name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", totalsRow+i), l.value)
	}

	_ = f.SetColWidth(sheet, "A", "A", 30)
	_ = f.SetColWidth(sheet, "B", "E", 16)
	return nil
}
