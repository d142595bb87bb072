package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/reelwork/internal/video/domain"
)

// VideoUpload is a registered asset awaiting or past moderation.
type VideoUpload struct {
	ID          uuid.UUID     `db:"id"`
	StreamUID   string        `db:"stream_uid"`
	CandidateID *string       `db:"candidate_id"`
	Status      domain.Status `db:"status"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

// UploadTarget is a one-time destination issued by the video host.
type UploadTarget struct {
	AssetID   string
	UploadURL string
	Provider  string
}

// HostDetails is what the video host knows about a registered asset.
// Any field may be empty when the host is unavailable or unaware of the asset.
type HostDetails struct {
	HostStatus string
	PlaybackID string
	Duration   *float64
}

// AdminVideo is one entry of the moderation feed.
type AdminVideo struct {
	UploadID    string    `json:"uploadId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	CandidateID *string   `json:"candidateId"`
	PlaybackID  *string   `json:"playbackId"`
	HostStatus  *string   `json:"muxStatus"`
	Duration    *float64  `json:"duration"`
}
