package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const combinedSheet = "Combined"

var combinedHeaders = []string{"date", "actual", "forecast", "forecast_upper", "forecast_lower", "secondary"}

// SaveXLSX writes the combined table as a spreadsheet: bold frozen
// header row, one row per date, null cells left blank.
func SaveXLSX(path string, table CombinedTable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", combinedSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for col, header := range combinedHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(combinedSheet, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(combinedHeaders), 1)
	if err := f.SetCellStyle(combinedSheet, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range table {
		rowIdx := i + 2
		values := []interface{}{
			row.Date.Format("2006-01-02"),
			excelCell(row.Actual),
			excelCell(row.Primary),
			excelCell(row.PrimaryUpper),
			excelCell(row.PrimaryLower),
			excelCell(row.Secondary),
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(combinedSheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", rowIdx, err)
			}
		}
	}

	if err := f.SetColWidth(combinedSheet, "A", "F", 14); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(combinedSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save spreadsheet: %w", err)
	}
	return nil
}

// excelCell maps a null cell to nil so the spreadsheet keeps it blank.
func excelCell(c Cell) interface{} {
	if !c.Valid {
		return nil
	}
	return c.Value
}
