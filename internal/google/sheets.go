package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"barberbook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	sheetName   = "Appointments"
	lastColumn  = "L"
	timeLayout  = "2006-01-02 15:04:05"
	idColumnRng = sheetName + "!A:A"
)

var headerRow = []interface{}{
	"ID", "Business", "Date", "Start", "Duration", "Professional",
	"Service", "Client", "Phone", "Status", "Created At", "Updated At",
}

var errRowNotFound = errors.New("appointment row not found")

// SheetsService mirrors appointments into a spreadsheet, one row per
// appointment keyed by ID in column A.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

// NewSheetsService authenticates with a service-account credentials file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsService, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return NewSheetsServiceWith(srv, spreadsheetID), nil
}

// NewSheetsServiceWith wraps an existing client.
func NewSheetsServiceWith(srv *sheets.Service, spreadsheetID string) *SheetsService {
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[string]int),
	}
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	if _, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetName+"!A1").Context(ctx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// WarmUpCache indexes column A so later upserts skip the lookup.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, idColumnRng).Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if id := cellString(row); id != "" && i > 0 {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

func cellString(row []interface{}) string {
	if len(row) == 0 {
		return ""
	}
	if v, ok := row[0].(string); ok {
		return v
	}
	return fmt.Sprint(row[0])
}

func rowValues(a *models.Appointment) []interface{} {
	return []interface{}{
		a.ID,
		a.BusinessID,
		a.Date,
		a.StartTime,
		a.DurationMinutes,
		firstNonEmpty(a.ProfessionalName, a.ProfessionalID),
		firstNonEmpty(a.ServiceName, a.ServiceID),
		a.ClientName,
		a.ClientPhone,
		a.Status,
		a.CreatedAt.Format(timeLayout),
		a.UpdatedAt.Format(timeLayout),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// AppendAppointment adds a new row at the end of the sheet.
func (s *SheetsService) AppendAppointment(ctx context.Context, appt *models.Appointment) error {
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, idColumnRng, &sheets.ValueRange{
		Values: [][]interface{}{rowValues(appt)},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// UpsertAppointment updates the appointment's row or appends one.
func (s *SheetsService) UpsertAppointment(ctx context.Context, appt *models.Appointment) error {
	if appt == nil {
		return fmt.Errorf("appointment is nil")
	}

	rowIdx, err := s.FindRow(ctx, appt.ID)
	if errors.Is(err, errRowNotFound) {
		return s.AppendAppointment(ctx, appt)
	}
	if err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!A%d:%s%d", sheetName, rowIdx, lastColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{rowValues(appt)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpdateAppointmentStatus rewrites the status and updated-at cells only.
func (s *SheetsService) UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error {
	rowIdx, err := s.FindRow(ctx, appointmentID)
	if err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!J%d:L%d", sheetName, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*sheets.ValueRange{
			{Range: fmt.Sprintf("%s!J%d", sheetName, rowIdx), Values: [][]interface{}{{status}}},
			{Range: fmt.Sprintf("%s!L%d", sheetName, rowIdx), Values: [][]interface{}{{time.Now().Format(timeLayout)}}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// FindRow returns the 1-based row of appointmentID, cached after first lookup.
func (s *SheetsService) FindRow(ctx context.Context, appointmentID string) (int, error) {
	if appointmentID == "" {
		return 0, fmt.Errorf("appointment id is required")
	}
	if row, ok := s.getCachedRow(appointmentID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, idColumnRng).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if cellString(row) == appointmentID {
			s.setCachedRow(appointmentID, i+1)
			return i + 1, nil
		}
	}
	return 0, errRowNotFound
}

// ReplaceAppointmentsSheet rewrites the whole sheet from appts.
func (s *SheetsService) ReplaceAppointmentsSheet(ctx context.Context, appts []*models.Appointment) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, sheetName+"!A1:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear appointments sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(appts)+1)
	values = append(values, headerRow)
	for _, a := range appts {
		values = append(values, rowValues(a))
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, sheetName+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update appointments sheet: %w", err)
	}

	cache := make(map[string]int, len(appts))
	for i, a := range appts {
		cache[a.ID] = i + 2 // строка 1 занята заголовком
	}
	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}
