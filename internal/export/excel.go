// Package export renders appointments as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"barberbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Agendamentos"

var headers = []string{
	"ID", "Data", "Início", "Duração (min)", "Profissional", "Serviço",
	"Cliente", "Telefone", "Status", "Observações", "Criado em",
}

var statusFill = map[string]string{
	models.StatusPending:    "#FFEB9C",
	models.StatusConfirmed:  "#C6EFCE",
	models.StatusInProgress: "#DDEBF7",
	models.StatusCompleted:  "#C6EFCE",
	models.StatusCancelled:  "#FFC7CE",
}

// Write renders appts for the period [from, to] into w.
func Write(w io.Writer, appts []*models.Appointment, from, to time.Time) error {
	f, err := build(appts, from, to)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Save writes the workbook into dir and returns the file path.
func Save(dir string, appts []*models.Appointment, from, to time.Time) (string, error) {
	// Создаем папку для экспорта, если не существует
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := build(appts, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("appointments_%s_to_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
	filePath := filepath.Join(dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}

func build(appts []*models.Appointment, from, to time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(SheetName, "A1", fmt.Sprintf("Período: %s - %s", from.Format("02/01/2006"), to.Format("02/01/2006")))
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(SheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(SheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(SheetName, cell, h)
		_ = f.SetCellStyle(SheetName, cell, cell, headerStyle)
	}

	sorted := make([]*models.Appointment, len(appts))
	copy(sorted, appts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].StartTime < sorted[j].StartTime
	})

	styles := make(map[string]int)
	for i, a := range sorted {
		row := i + 3
		values := []interface{}{
			a.ID, a.Date, a.StartTime, a.DurationMinutes,
			nameOrID(a.ProfessionalName, a.ProfessionalID),
			nameOrID(a.ServiceName, a.ServiceID),
			a.ClientName, a.ClientPhone, a.Status, a.Notes,
			a.CreatedAt.Format("02/01/2006 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}

		styleID, err := statusStyle(f, styles, a.Status)
		if err == nil {
			statusCell, _ := excelize.CoordinatesToCellName(9, row)
			_ = f.SetCellStyle(SheetName, statusCell, statusCell, styleID)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 38)
	_ = f.SetColWidth(SheetName, "B", "D", 12)
	_ = f.SetColWidth(SheetName, "E", "H", 20)
	_ = f.SetColWidth(SheetName, "I", "I", 14)
	_ = f.SetColWidth(SheetName, "J", "K", 25)

	return f, nil
}

func statusStyle(f *excelize.File, cache map[string]int, status string) (int, error) {
	if id, ok := cache[status]; ok {
		return id, nil
	}
	color, ok := statusFill[status]
	if !ok {
		color = "#FFFFFF"
	}
	id, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return 0, err
	}
	cache[status] = id
	return id, nil
}

func nameOrID(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
