package domain

import (
	"context"
	"time"

	"salon/internal/docstore"
	"salon/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DocumentStore is the document API the services read and write through.
type DocumentStore interface {
	docstore.Session
	Watch(ctx context.Context, collection string, q docstore.Query, fn docstore.WatchFunc) error
}

// Store adds atomic batches and health checks.
type Store interface {
	DocumentStore
	Batch(ctx context.Context, fn func(tx *docstore.Tx) error) error
	Ping(ctx context.Context) error
}

type DraftRepository interface {
	GetDraft(ctx context.Context, id string) (*models.BookingDraft, error)
	SetDraft(ctx context.Context, draft *models.BookingDraft) error
	ClearDraft(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType, documentID string, payload interface{}) error
}

type SheetsWriter interface {
	UpsertAppointment(ctx context.Context, appt *models.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error
	AppendTransaction(ctx context.Context, tx *models.Transaction) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
