package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/romariotrain/reelwork/internal/metrics"
	"github.com/romariotrain/reelwork/internal/video/domain"
	"github.com/romariotrain/reelwork/internal/video/models"
	"github.com/romariotrain/reelwork/internal/video/repository"
	"github.com/romariotrain/reelwork/internal/video/videohost"
)

// FeedSize is the number of uploads shown in the moderation feed.
const FeedSize = 20

const enrichConcurrency = 8

// Ledger tracks issued upload targets. Optional.
type Ledger interface {
	Issue(ctx context.Context, assetID, provider string) error
	Consume(ctx context.Context, assetID string) (bool, error)
}

type Config struct {
	Repo      repository.UploadRepository
	Host      videohost.Host
	Inspector videohost.Inspector // optional, enriches the moderation feed
	Ledger    Ledger              // optional
	Logger    zerolog.Logger
}

type Service struct {
	repo      repository.UploadRepository
	host      videohost.Host
	inspector videohost.Inspector
	ledger    Ledger
	logger    zerolog.Logger
	clock     func() time.Time
	idGen     func() uuid.UUID
}

func New(cfg Config) (*Service, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("upload repository is required")
	}
	if cfg.Host == nil {
		return nil, fmt.Errorf("video host is required")
	}
	return &Service{
		repo:      cfg.Repo,
		host:      cfg.Host,
		inspector: cfg.Inspector,
		ledger:    cfg.Ledger,
		logger:    cfg.Logger.With().Str("component", "video_service").Logger(),
		clock:     time.Now,
		idGen:     uuid.New,
	}, nil
}

// IssueUploadCredentials asks the video host for a one-time upload target and
// records it in the ledger.
func (s *Service) IssueUploadCredentials(ctx context.Context) (models.UploadTarget, error) {
	provider := s.host.Name()

	target, err := s.host.CreateUpload(ctx)
	if err != nil {
		metrics.RecordCredentialIssued(provider, "failure")
		s.logger.Error().Err(err).Str("provider", provider).Msg("create upload target failed")
		return models.UploadTarget{}, err
	}
	metrics.RecordCredentialIssued(provider, "success")

	if s.ledger != nil {
		if err := s.ledger.Issue(ctx, target.AssetID, provider); err != nil {
			// ledger is diagnostics only, the target is still valid
			s.logger.Warn().Err(err).Str("asset_id", target.AssetID).Msg("ledger issue failed")
		}
	}

	s.logger.Info().
		Str("provider", provider).
		Str("asset_id", target.AssetID).
		Msg("upload target issued")
	return target, nil
}

// RegisterUpload records a transferred asset for moderation with status pending,
// together with a VideoRegistered event.
func (s *Service) RegisterUpload(ctx context.Context, assetID, candidateID string) (*models.VideoUpload, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, models.ErrInvalidArgument
	}

	now := s.clock()
	u := &models.VideoUpload{
		ID:        s.idGen(),
		StreamUID: assetID,
		Status:    domain.Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c := strings.TrimSpace(candidateID); c != "" {
		u.CandidateID = &c
	}

	event := models.NewVideoRegistered(u, s.idGen(), now)
	if err := s.repo.Create(ctx, u, event); err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			metrics.RecordRegistration("conflict")
		default:
			metrics.RecordRegistration("failure")
		}
		return nil, err
	}
	metrics.RecordRegistration("success")

	s.consumeCredential(ctx, assetID)

	s.logger.Info().
		Str("asset_id", assetID).
		Str("upload_id", u.ID.String()).
		Msg("upload registered")
	return u, nil
}

func (s *Service) consumeCredential(ctx context.Context, assetID string) {
	if s.ledger == nil {
		return
	}
	issued, err := s.ledger.Consume(ctx, assetID)
	if err != nil {
		s.logger.Warn().Err(err).Str("asset_id", assetID).Msg("ledger consume failed")
		return
	}
	if !issued {
		metrics.RecordUnissuedRegistration()
		s.logger.Warn().Str("asset_id", assetID).Msg("registered asset was not issued by this service or has expired")
	}
}

// ChangeStatus applies a moderation decision. The update and its VideoStatusChanged
// event are stored atomically; setting the current status again is a no-op.
func (s *Service) ChangeStatus(ctx context.Context, streamUID, status string) (*models.VideoUpload, error) {
	to, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if streamUID == "" {
		return nil, models.ErrInvalidArgument
	}

	// 1. Получаем текущую запись (чтобы узнать старый статус)
	m, err := s.repo.GetByStreamUID(ctx, streamUID)
	if err != nil {
		return nil, err
	}

	// 2. Валидация перехода
	if err := domain.ValidateTransition(m.Status, to); err != nil {
		return nil, err
	}

	// Если статус уже такой, ничего не делаем
	if m.Status == to {
		return m, nil
	}

	// 3. Событие + обновление в одной транзакции
	event := models.NewVideoStatusChanged(m, to, s.idGen(), s.clock())
	updated, err := s.repo.UpdateStatus(ctx, streamUID, m.Status, to, event)
	if err != nil {
		return nil, err
	}
	metrics.RecordModerationChange(string(to))

	s.logger.Info().
		Str("asset_id", streamUID).
		Str("from", string(m.Status)).
		Str("to", string(to)).
		Msg("moderation status changed")
	return updated, nil
}

// ListRecent returns the moderation feed: the latest uploads, enriched with video-host
// details when an inspector is configured. Enrichment failures degrade to empty fields.
func (s *Service) ListRecent(ctx context.Context) ([]models.AdminVideo, error) {
	uploads, err := s.repo.ListRecent(ctx, FeedSize)
	if err != nil {
		return nil, err
	}

	out := make([]models.AdminVideo, len(uploads))
	var g errgroup.Group
	g.SetLimit(enrichConcurrency)
	for i := range uploads {
		u := uploads[i]
		out[i] = models.AdminVideo{
			UploadID:    u.StreamUID,
			Status:      string(u.Status),
			CreatedAt:   u.CreatedAt,
			CandidateID: u.CandidateID,
		}
		if s.inspector == nil {
			continue
		}

		v := &out[i]
		// ошибки не прерывают остальные запросы: запись просто остаётся без деталей
		g.Go(func() error {
			d, err := s.inspector.Inspect(ctx, v.UploadID)
			if err != nil {
				s.logger.Warn().Err(err).Str("asset_id", v.UploadID).Msg("video host lookup failed")
			}
			if d.HostStatus != "" {
				st := d.HostStatus
				v.HostStatus = &st
			}
			if d.PlaybackID != "" {
				pb := d.PlaybackID
				v.PlaybackID = &pb
			}
			v.Duration = d.Duration
			return nil
		})
	}
	_ = g.Wait()

	if s.inspector != nil && len(out) > 0 && noPlayback(out) {
		s.logger.Warn().Msg("no playback ids available; check MUX_TOKEN_ID / MUX_TOKEN_SECRET permissions")
	}
	return out, nil
}

func noPlayback(videos []models.AdminVideo) bool {
	for _, v := range videos {
		if v.PlaybackID != nil {
			return false
		}
	}
	return true
}
