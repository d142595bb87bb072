package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/reelwork/internal/video/domain"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// VideoRegistered is emitted when a candidate's asset is recorded for moderation.
type VideoRegistered struct {
	eventID     uuid.UUID
	uploadID    uuid.UUID
	streamUID   string
	candidateID *string
	occurredAt  time.Time
}

func NewVideoRegistered(u *VideoUpload, eventID uuid.UUID, at time.Time) *VideoRegistered {
	return &VideoRegistered{
		eventID:     eventID,
		uploadID:    u.ID,
		streamUID:   u.StreamUID,
		candidateID: u.CandidateID,
		occurredAt:  at,
	}
}

func (e *VideoRegistered) EventID() uuid.UUID     { return e.eventID }
func (e *VideoRegistered) EventType() string      { return "VideoRegistered" }
func (e *VideoRegistered) AggregateID() uuid.UUID { return e.uploadID }
func (e *VideoRegistered) OccurredAt() time.Time  { return e.occurredAt }

func (e *VideoRegistered) StreamUID() string { return e.streamUID }

func (e *VideoRegistered) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID     uuid.UUID `json:"event_id"`
		UploadID    uuid.UUID `json:"upload_id"`
		StreamUID   string    `json:"stream_uid"`
		CandidateID *string   `json:"candidate_id"`
		OccurredAt  time.Time `json:"occurred_at"`
	}{
		EventID:     e.eventID,
		UploadID:    e.uploadID,
		StreamUID:   e.streamUID,
		CandidateID: e.candidateID,
		OccurredAt:  e.occurredAt,
	})
}

// VideoStatusChanged is emitted when a moderator changes an upload's status.
type VideoStatusChanged struct {
	eventID    uuid.UUID
	uploadID   uuid.UUID
	streamUID  string
	from       domain.Status
	to         domain.Status
	occurredAt time.Time
}

func NewVideoStatusChanged(u *VideoUpload, to domain.Status, eventID uuid.UUID, at time.Time) *VideoStatusChanged {
	return &VideoStatusChanged{
		eventID:    eventID,
		uploadID:   u.ID,
		streamUID:  u.StreamUID,
		from:       u.Status,
		to:         to,
		occurredAt: at,
	}
}

func (e *VideoStatusChanged) EventID() uuid.UUID     { return e.eventID }
func (e *VideoStatusChanged) EventType() string      { return "VideoStatusChanged" }
func (e *VideoStatusChanged) AggregateID() uuid.UUID { return e.uploadID }
func (e *VideoStatusChanged) OccurredAt() time.Time  { return e.occurredAt }

// Геттеры для payload
func (e *VideoStatusChanged) From() domain.Status { return e.from }
func (e *VideoStatusChanged) To() domain.Status   { return e.to }

func (e *VideoStatusChanged) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID    uuid.UUID     `json:"event_id"`
		UploadID   uuid.UUID     `json:"upload_id"`
		StreamUID  string        `json:"stream_uid"`
		From       domain.Status `json:"from"`
		To         domain.Status `json:"to"`
		OccurredAt time.Time     `json:"occurred_at"`
	}{
		EventID:    e.eventID,
		UploadID:   e.uploadID,
		StreamUID:  e.streamUID,
		From:       e.from,
		To:         e.to,
		OccurredAt: e.occurredAt,
	})
}
