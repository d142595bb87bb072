package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/reelwork/internal/video/domain"
	"github.com/romariotrain/reelwork/internal/video/models"
)

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) Create(ctx context.Context, u *models.VideoUpload, event models.DomainEvent) error {
	args := m.Called(ctx, u, event)
	return args.Error(0)
}

func (m *StoreMock) GetByStreamUID(ctx context.Context, streamUID string) (*models.VideoUpload, error) {
	args := m.Called(ctx, streamUID)
	if v := args.Get(0); v != nil {
		return v.(*models.VideoUpload), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) UpdateStatus(ctx context.Context, streamUID string, from, to domain.Status, event models.DomainEvent) (*models.VideoUpload, error) {
	args := m.Called(ctx, streamUID, from, to, event)
	if v := args.Get(0); v != nil {
		return v.(*models.VideoUpload), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoreMock) ListRecent(ctx context.Context, limit int) ([]models.VideoUpload, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]models.VideoUpload), args.Error(1)
	}
	return nil, args.Error(1)
}

type HostMock struct {
	mock.Mock
}

func (m *HostMock) Name() string { return "cloudflare" }

func (m *HostMock) CreateUpload(ctx context.Context) (models.UploadTarget, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.UploadTarget), args.Error(1)
}

type InspectorMock struct {
	mock.Mock
}

func (m *InspectorMock) Inspect(ctx context.Context, assetID string) (models.HostDetails, error) {
	args := m.Called(ctx, assetID)
	return args.Get(0).(models.HostDetails), args.Error(1)
}

type LedgerMock struct {
	mock.Mock
}

func (m *LedgerMock) Issue(ctx context.Context, assetID, provider string) error {
	args := m.Called(ctx, assetID, provider)
	return args.Error(0)
}

func (m *LedgerMock) Consume(ctx context.Context, assetID string) (bool, error) {
	args := m.Called(ctx, assetID)
	return args.Bool(0), args.Error(1)
}
