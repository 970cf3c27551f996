package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"barberbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() []*models.Appointment {
	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	return []*models.Appointment{
		{ID: "b", Date: "2024-06-03", StartTime: "11:00", DurationMinutes: 30, ProfessionalID: "p1", ServiceName: "Corte",
			ClientName: "Bia", ClientPhone: "+55", Status: models.StatusCancelled, CreatedAt: created},
		{ID: "a", Date: "2024-06-03", StartTime: "09:00", DurationMinutes: 45, ProfessionalName: "Joao", ServiceID: "barba",
			ClientName: "Ana", ClientPhone: "+55", Status: models.StatusConfirmed, CreatedAt: created},
	}
}

func TestWrite(t *testing.T) {
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), from, to))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	title, _ := f.GetCellValue(SheetName, "A1")
	assert.Equal(t, "Período: 01/06/2024 - 30/06/2024", title)

	first, _ := f.GetCellValue(SheetName, "A3")
	assert.Equal(t, "a", first, "rows sorted by date and start time")
	prof, _ := f.GetCellValue(SheetName, "E3")
	assert.Equal(t, "Joao", prof)
	svc, _ := f.GetCellValue(SheetName, "F3")
	assert.Equal(t, "barba", svc)

	status, _ := f.GetCellValue(SheetName, "I4")
	assert.Equal(t, models.StatusCancelled, status)
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	path, err := Save(dir, nil, from, from)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "appointments_2024-06-01_to_2024-06-01.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	header, _ := f.GetCellValue(SheetName, "A2")
	assert.Equal(t, "ID", header)
}
