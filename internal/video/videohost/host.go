// Package videohost issues one-time upload targets on the third-party video hosts.
package videohost

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/reelwork/internal/config"
	"github.com/romariotrain/reelwork/internal/video/models"
)

// Host creates one-time upload targets.
type Host interface {
	Name() string
	CreateUpload(ctx context.Context) (models.UploadTarget, error)
}

// Inspector looks up processing details of an uploaded asset.
type Inspector interface {
	Inspect(ctx context.Context, assetID string) (models.HostDetails, error)
}

const defaultTimeout = 15 * time.Second

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

// New builds the provider selected in cfg, plus a Mux inspector for the moderation feed
// whenever Mux credentials are present. Missing credentials are not an error here;
// the provider reports them per request.
func New(ctx context.Context, cfg config.VideoHostConfig, logger zerolog.Logger) (Host, Inspector, error) {
	mux := NewMux(MuxConfig{
		TokenID:     cfg.MuxTokenID,
		TokenSecret: cfg.MuxTokenSecret,
		Logger:      logger,
	})
	var inspector Inspector
	if mux.Configured() {
		inspector = mux
	}

	switch cfg.Provider {
	case config.HostCloudflare:
		return NewCloudflare(CloudflareConfig{
			AccountID: cfg.CloudflareAccountID,
			Token:     cfg.CloudflareToken,
		}), inspector, nil
	case config.HostMux:
		return mux, inspector, nil
	case config.HostS3:
		s3, err := NewS3(ctx, S3Config{
			Region:               cfg.AWSRegion,
			AccessKeyID:          cfg.AWSAccessKeyID,
			SecretAccessKey:      cfg.AWSSecretAccessKey,
			Bucket:               cfg.S3Bucket,
			PresignExpireMinutes: cfg.PresignExpireMinutes,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s3, inspector, nil
	default:
		return nil, nil, fmt.Errorf("unknown video host %q", cfg.Provider)
	}
}
