package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/reelwork/internal/video/domain"
	"github.com/romariotrain/reelwork/internal/video/models"
)

const uniqueViolation = "23505"

// UploadRepo stores video_uploads rows; every write also appends its event to the outbox.
type UploadRepo struct {
	db     *sqlx.DB
	outbox *OutboxRepo
}

func NewUploadRepo(db *sqlx.DB, outbox *OutboxRepo) *UploadRepo {
	return &UploadRepo{db: db, outbox: outbox}
}

func (r *UploadRepo) Create(ctx context.Context, u *models.VideoUpload, event models.DomainEvent) error {
	const q = `
		INSERT INTO video_uploads (id, stream_uid, candidate_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // откатится если не сделаем Commit

	_, err = tx.ExecContext(ctx, q,
		u.ID, u.StreamUID, u.CandidateID, u.Status, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("video upload %s: %w", u.StreamUID, models.ErrConflict)
		}
		return fmt.Errorf("video upload create: %w", err)
	}

	if err := r.outbox.Add(ctx, tx, event); err != nil {
		return fmt.Errorf("add outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *UploadRepo) GetByStreamUID(ctx context.Context, streamUID string) (*models.VideoUpload, error) {
	const q = `
		SELECT id, stream_uid, candidate_id, status, created_at, updated_at
		FROM video_uploads
		WHERE stream_uid = $1
	`

	var u models.VideoUpload
	if err := r.db.GetContext(ctx, &u, q, streamUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("video upload get: %w", err)
	}
	return &u, nil
}

func (r *UploadRepo) UpdateStatus(ctx context.Context, streamUID string, from, to domain.Status, event models.DomainEvent) (*models.VideoUpload, error) {
	// status = from: optimistic lock против параллельной модерации
	const q = `
		UPDATE video_uploads
		SET status = $3, updated_at = NOW()
		WHERE stream_uid = $1 AND status = $2
		RETURNING id, stream_uid, candidate_id, status, created_at, updated_at
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var u models.VideoUpload
	if err := tx.GetContext(ctx, &u, q, streamUID, from, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOrConflict(ctx, tx, streamUID)
		}
		return nil, fmt.Errorf("video upload update status: %w", err)
	}

	if err := r.outbox.Add(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("add outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &u, nil
}

func (r *UploadRepo) missingOrConflict(ctx context.Context, tx *sqlx.Tx, streamUID string) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM video_uploads WHERE stream_uid = $1)`, streamUID); err != nil {
		return fmt.Errorf("video upload exists: %w", err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return models.ErrConflict
}

func (r *UploadRepo) ListRecent(ctx context.Context, limit int) ([]models.VideoUpload, error) {
	const q = `
		SELECT id, stream_uid, candidate_id, status, created_at, updated_at
		FROM video_uploads
		ORDER BY created_at DESC
		LIMIT $1
	`

	var out []models.VideoUpload
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("video upload list: %w", err)
	}
	return out, nil
}

// Ping checks the database connection for readiness probes.
func (r *UploadRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
