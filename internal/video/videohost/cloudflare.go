package videohost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/romariotrain/reelwork/internal/config"
	"github.com/romariotrain/reelwork/internal/video/models"
)

const cloudflareAPI = "https://api.cloudflare.com/client/v4"

type CloudflareConfig struct {
	AccountID  string
	Token      string
	BaseURL    string // defaults to the public API
	HTTPClient *http.Client
}

// Cloudflare issues Stream direct-upload URLs.
type Cloudflare struct {
	accountID string
	token     string
	baseURL   string
	client    *http.Client
}

func NewCloudflare(cfg CloudflareConfig) *Cloudflare {
	base := cfg.BaseURL
	if base == "" {
		base = cloudflareAPI
	}
	return &Cloudflare{
		accountID: cfg.AccountID,
		token:     cfg.Token,
		baseURL:   strings.TrimRight(base, "/"),
		client:    defaultClient(cfg.HTTPClient),
	}
}

func (c *Cloudflare) Name() string { return config.HostCloudflare }

type cloudflareDirectUpload struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		UID       string `json:"uid"`
		UploadURL string `json:"uploadURL"`
	} `json:"result"`
}

func (c *Cloudflare) CreateUpload(ctx context.Context) (models.UploadTarget, error) {
	const msg = "Failed to generate Cloudflare Stream direct upload URL."

	if c.accountID == "" || c.token == "" {
		return models.UploadTarget{}, &ConfigError{
			Provider: c.Name(),
			Message:  "Cloudflare Stream environment variables are missing. Set CLOUDFLARE_ACCOUNT_ID and CLOUDFLARE_STREAM_TOKEN.",
		}
	}

	body, err := json.Marshal(map[string]any{
		"maxDurationSeconds": 60,
		"allowedOrigins":     []string{"*"},
		"creator":            "candidate",
		"requireSignedURLs":  false,
	})
	if err != nil {
		return models.UploadTarget{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/stream/direct_upload", c.baseURL, c.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.UploadTarget{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.UploadTarget{}, &ProviderError{Provider: c.Name(), Message: msg, Err: err}
	}
	defer resp.Body.Close()

	var payload cloudflareDirectUpload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.UploadTarget{}, &ProviderError{
			Provider:   c.Name(),
			StatusCode: resp.StatusCode,
			Message:    msg,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !payload.Success {
		return models.UploadTarget{}, &ProviderError{
			Provider:   c.Name(),
			StatusCode: resp.StatusCode,
			Message:    msg,
			Details:    payload.Errors,
		}
	}
	if payload.Result.UID == "" || payload.Result.UploadURL == "" {
		return models.UploadTarget{}, &ProviderError{
			Provider:   c.Name(),
			StatusCode: resp.StatusCode,
			Message:    msg,
			Details:    "response is missing uid or uploadURL",
		}
	}

	return models.UploadTarget{
		AssetID:   payload.Result.UID,
		UploadURL: payload.Result.UploadURL,
		Provider:  c.Name(),
	}, nil
}
