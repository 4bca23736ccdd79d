package export

import (
	"fmt"
	"io"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"
	"github.com/adirsaban8-oss/ADIRS/internal/phone"

	"github.com/xuri/excelize/v2"
)

const customersSheet = "לקוחות"

var customerHeaders = []string{"שם", "טלפון", "אימייל", "תורים עתידיים", "תאריך הרשמה"}

// FileName returns the download name for an export made at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("customers_%s.xlsx", now.Format("2006-01-02_15-04-05"))
}

// WriteCustomers writes customers as an RTL XLSX workbook to w. upcoming
// maps customer id to the number of active future appointments; a nil map
// leaves that column empty.
func WriteCustomers(w io.Writer, customers []*models.Customer, upcoming map[string]int, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(customersSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	rtl := true
	_ = f.SetSheetView(customersSheet, 0, &excelize.ViewOptions{RightToLeft: &rtl})

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F5EFE3"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#8A6D2F"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range customerHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(customersSheet, cell, header)
		_ = f.SetCellStyle(customersSheet, cell, cell, headerStyle)
	}

	for i, c := range customers {
		row := i + 2
		_ = f.SetCellValue(customersSheet, fmt.Sprintf("A%d", row), c.Name)
		_ = f.SetCellValue(customersSheet, fmt.Sprintf("B%d", row), phone.Local(c.Phone))
		_ = f.SetCellValue(customersSheet, fmt.Sprintf("C%d", row), c.Email)
		if upcoming != nil {
			_ = f.SetCellValue(customersSheet, fmt.Sprintf("D%d", row), upcoming[c.ID])
		}
		if !c.CreatedAt.IsZero() {
			_ = f.SetCellValue(customersSheet, fmt.Sprintf("E%d", row), c.CreatedAt.In(loc).Format("02/01/2006 15:04"))
		}
	}

	_ = f.SetColWidth(customersSheet, "A", "A", 25)
	_ = f.SetColWidth(customersSheet, "B", "B", 16)
	_ = f.SetColWidth(customersSheet, "C", "C", 30)
	_ = f.SetColWidth(customersSheet, "D", "D", 14)
	_ = f.SetColWidth(customersSheet, "E", "E", 18)
	_ = f.SetPanes(customersSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}
