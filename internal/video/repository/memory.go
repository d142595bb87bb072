package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/romariotrain/reelwork/internal/video/domain"
	"github.com/romariotrain/reelwork/internal/video/models"
)

// MemoryRepository keeps uploads and their outbox in process. Used in development
// when no database is configured, and in tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	data      map[string]*models.VideoUpload
	outbox    []OutboxRecord
	processed map[int64]bool
	nextID    int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		data:      make(map[string]*models.VideoUpload),
		processed: make(map[int64]bool),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, u *models.VideoUpload, event models.DomainEvent) error {
	if u == nil || u.StreamUID == "" {
		return models.ErrInvalidArgument
	}
	// для in-memory просто проверим отмену
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, err := r.record(event)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[u.StreamUID]; exists {
		return models.ErrConflict
	}

	// Защитная копия, чтобы внешняя сторона не могла мутировать хранимый объект
	cp := *u
	r.data[u.StreamUID] = &cp
	r.appendLocked(rec)
	return nil
}

func (r *MemoryRepository) GetByStreamUID(ctx context.Context, streamUID string) (*models.VideoUpload, error) {
	if streamUID == "" {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.data[streamUID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, streamUID string, from, to domain.Status, event models.DomainEvent) (*models.VideoUpload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := r.record(event)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.data[streamUID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if u.Status != from {
		return nil, models.ErrConflict
	}
	u.Status = to
	u.UpdatedAt = event.OccurredAt()
	r.appendLocked(rec)

	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) ListRecent(ctx context.Context, limit int) ([]models.VideoUpload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]models.VideoUpload, 0, len(r.data))
	for _, u := range r.data {
		out = append(out, *u)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) GetPending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []OutboxRecord
	for _, rec := range r.outbox {
		if r.processed[rec.ID] {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) MarkProcessed(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[id] = true
	return nil
}

// Outbox returns every stored event, processed or not, in insertion order.
func (r *MemoryRepository) Outbox() []OutboxRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]OutboxRecord, len(r.outbox))
	copy(out, r.outbox)
	return out
}

func (r *MemoryRepository) record(event models.DomainEvent) (OutboxRecord, error) {
	if event == nil {
		return OutboxRecord{}, fmt.Errorf("%w: event is required", models.ErrInvalidArgument)
	}
	rec, err := NewOutboxRecord(event)
	if err != nil {
		return OutboxRecord{}, fmt.Errorf("marshal event: %w", err)
	}
	return rec, nil
}

func (r *MemoryRepository) appendLocked(rec OutboxRecord) {
	r.nextID++
	rec.ID = r.nextID
	r.outbox = append(r.outbox, rec)
}
