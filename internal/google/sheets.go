package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"salon/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Листы таблицы
const (
	AppointmentsSheet = "Agendamentos"
	TransactionsSheet = "Transacoes"
)

const timestampLayout = "2006-01-02 15:04:05"

var errRowNotFound = errors.New("appointment row not found")

// SheetsService mirrors appointments and transactions into one spreadsheet.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
	logger        *zerolog.Logger
	now           func() time.Time
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string, logger *zerolog.Logger) (*SheetsService, error) {
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

	return newSheetsService(srv, spreadsheetID, logger), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID string, logger *zerolog.Logger) *SheetsService {
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[string]int),
		logger:        logger,
		now:           time.Now,
	}
}

// Start warms the row cache and refreshes it every interval until ctx is done.
func (s *SheetsService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = models.SheetsCacheTTL * time.Second
	}
	refresh := func() {
		rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.WarmUpCache(rctx); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("sheets cache warm up failed")
		}
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// TestConnection проверяет доступ к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, AppointmentsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the client_email of a credentials file.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// WarmUpCache rebuilds the appointment id to row index.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, AppointmentsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
	for i, row := range resp.Values {
		if id := cellString(row); id != "" {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// AppendAppointment adds a new appointment row.
func (s *SheetsService) AppendAppointment(ctx context.Context, appt *models.Appointment) error {
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, AppointmentsSheet+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(appt, s.now())},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// UpsertAppointment updates the appointment row or appends one if not found.
func (s *SheetsService) UpsertAppointment(ctx context.Context, appt *models.Appointment) error {
	if appt == nil {
		return fmt.Errorf("appointment is nil")
	}

	rowIdx, err := s.FindAppointmentRow(ctx, appt.ID)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return s.AppendAppointment(ctx, appt)
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:L%d", AppointmentsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(appt, s.now())},
	}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// UpdateAppointmentStatus rewrites the status and updated-at cells of a row.
func (s *SheetsService) UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error {
	rowIdx, err := s.FindAppointmentRow(ctx, appointmentID)
	if err != nil {
		return err
	}

	statusRange := fmt.Sprintf("%s!I%d:I%d", AppointmentsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, statusRange, &sheets.ValueRange{
		Values: [][]interface{}{{statusLabel(status)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	updatedRange := fmt.Sprintf("%s!L%d:L%d", AppointmentsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, updatedRange, &sheets.ValueRange{
		Values: [][]interface{}{{s.now().Format(timestampLayout)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// AppendTransaction adds a row to the transactions sheet.
func (s *SheetsService) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx == nil {
		return fmt.Errorf("transaction is nil")
	}
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, TransactionsSheet+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{transactionRowValues(tx)},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// FindAppointmentRow locates the 1-based row of appointmentID in column A.
func (s *SheetsService) FindAppointmentRow(ctx context.Context, appointmentID string) (int, error) {
	if appointmentID == "" {
		return 0, fmt.Errorf("appointment id is required")
	}

	if row, ok := s.getCachedRow(appointmentID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, AppointmentsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if cellString(row) == appointmentID {
			rowIdx := i + 1 // строки таблицы нумеруются с 1
			s.setCachedRow(appointmentID, rowIdx)
			return rowIdx, nil
		}
	}
	return 0, errRowNotFound
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

// ClearCache clears the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}

func cellString(row []interface{}) string {
	if len(row) == 0 {
		return ""
	}
	switch v := row[0].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

func statusLabel(status string) string {
	switch status {
	case models.StatusPending:
		return "Pendente"
	case models.StatusCompleted:
		return "Concluído"
	case models.StatusCancelled:
		return "Cancelado"
	}
	return status
}

func appointmentRowValues(appt *models.Appointment, updatedAt time.Time) []interface{} {
	return []interface{}{
		appt.ID,
		appt.Date.Format(models.DateLayout),
		appt.TimeSlot,
		appt.Name,
		appt.Email,
		appt.Phone,
		appt.ServiceName,
		appt.ServicePrice,
		statusLabel(appt.Status),
		appt.Notes,
		appt.CreatedAt.Format(timestampLayout),
		updatedAt.Format(timestampLayout),
	}
}

func transactionRowValues(tx *models.Transaction) []interface{} {
	typ := "Receita"
	if tx.IsExpense() {
		typ = "Despesa"
	}
	return []interface{}{
		tx.ID,
		tx.Date.Format(models.DateLayout),
		tx.Description,
		tx.Category,
		typ,
		tx.Amount,
	}
}
