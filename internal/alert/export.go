package alert

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Alerts"

var exportHeader = []string{"Date", "Worker", "Worker ID", "Department", "Kind", "Severity", "Target", "Logged", "Deficit", "Status", "Justification"}

// WriteXLSX writes alerts as a single-sheet workbook.
func WriteXLSX(w io.Writer, alerts []Alert) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("alert: export: %w", err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("alert: export style: %w", err)
	}

	for i, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
	}
	last, _ := excelize.ColumnNumberToName(len(exportHeader))
	f.SetCellStyle(exportSheet, "A1", last+"1", headerStyle)
	f.SetColWidth(exportSheet, "A", "A", 12)
	f.SetColWidth(exportSheet, "B", "D", 18)

	for r, a := range alerts {
		row := r + 2
		values := []interface{}{
			a.Date, a.WorkerName, a.WorkerID, a.Department, a.Kind, a.Severity,
			a.TargetHours.InexactFloat64(), a.LoggedHours.InexactFloat64(), a.DeficitHours.InexactFloat64(),
			a.Status, a.Justification,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, start, &values); err != nil {
			return fmt.Errorf("alert: export row %d: %w", row, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("alert: export write: %w", err)
	}
	return nil
}
