package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/romariotrain/reelwork/internal/video/domain"
	"github.com/romariotrain/reelwork/internal/video/models"
)

// UploadRepository persists registered uploads. Every write carries the domain event
// that describes it; implementations store both atomically.
type UploadRepository interface {
	Create(ctx context.Context, u *models.VideoUpload, event models.DomainEvent) error
	GetByStreamUID(ctx context.Context, streamUID string) (*models.VideoUpload, error)
	// UpdateStatus moves the upload from -> to. It fails with models.ErrConflict when
	// the stored status is no longer from.
	UpdateStatus(ctx context.Context, streamUID string, from, to domain.Status, event models.DomainEvent) (*models.VideoUpload, error)
	ListRecent(ctx context.Context, limit int) ([]models.VideoUpload, error)
}

// OutboxRecord is one stored event awaiting publication.
type OutboxRecord struct {
	ID          int64
	EventID     string
	EventType   string
	AggregateID string
	Payload     json.RawMessage
	OccurredAt  time.Time
}

// OutboxStore is the publisher's view of the outbox table.
type OutboxStore interface {
	GetPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// NewOutboxRecord serialises event the way it is stored.
func NewOutboxRecord(event models.DomainEvent) (OutboxRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxRecord{}, err
	}
	return OutboxRecord{
		EventID:     event.EventID().String(),
		EventType:   event.EventType(),
		AggregateID: event.AggregateID().String(),
		Payload:     payload,
		OccurredAt:  event.OccurredAt(),
	}, nil
}
