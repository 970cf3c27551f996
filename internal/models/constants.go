package models

// Appointment statuses.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Draft steps mirror the client booking flow.
const (
	StepSelectService      = "select_service"
	StepSelectProfessional = "select_professional"
	StepSelectDate         = "select_date"
	StepSelectTime         = "select_time"
	StepClientData         = "client_data"
	StepConfirmation       = "confirmation"
)

const (
	// DefaultSlotStepMinutes шаг сетки слотов
	DefaultSlotStepMinutes = 30

	// DefaultServiceMinutes длительность, если услугу не удалось найти
	DefaultServiceMinutes = 30

	// DefaultMaxAdvanceDays горизонт записи в днях
	DefaultMaxAdvanceDays = 30

	// DefaultDraftTTL время жизни черновика записи в секундах
	DefaultDraftTTL = 24 * 60 * 60

	// DefaultSlotCacheTTL время жизни кэша слотов в секундах
	DefaultSlotCacheTTL = 5 * 60

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// SheetsCacheTTL время жизни кэша строк Google Sheets
	SheetsCacheTTL = 60 * 60

	// DateLayout формат даты записи
	DateLayout = "2006-01-02"
)

// IsValidStatus reports whether s is a known appointment status.
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
