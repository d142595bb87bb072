package videohost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/romariotrain/reelwork/internal/config"
	"github.com/romariotrain/reelwork/internal/video/models"
)

const muxAPI = "https://api.mux.com"

var errMuxNotFound = errors.New("mux: not found")

type MuxConfig struct {
	TokenID     string
	TokenSecret string
	BaseURL     string
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// Mux issues direct uploads and reports asset processing state.
type Mux struct {
	tokenID     string
	tokenSecret string
	baseURL     string
	client      *http.Client
	logger      zerolog.Logger
}

func NewMux(cfg MuxConfig) *Mux {
	base := cfg.BaseURL
	if base == "" {
		base = muxAPI
	}
	return &Mux{
		tokenID:     cfg.TokenID,
		tokenSecret: cfg.TokenSecret,
		baseURL:     strings.TrimRight(base, "/"),
		client:      defaultClient(cfg.HTTPClient),
		logger:      cfg.Logger.With().Str("component", "mux").Logger(),
	}
}

func (m *Mux) Name() string { return config.HostMux }

// Configured reports whether both API credentials are present.
func (m *Mux) Configured() bool {
	return m.tokenID != "" && m.tokenSecret != ""
}

func (m *Mux) CreateUpload(ctx context.Context) (models.UploadTarget, error) {
	const msg = "Failed to create Mux direct upload."

	if !m.Configured() {
		return models.UploadTarget{}, &ConfigError{
			Provider: m.Name(),
			Message:  "Mux environment variables are missing. Set MUX_TOKEN_ID and MUX_TOKEN_SECRET.",
		}
	}

	reqBody := map[string]any{
		"cors_origin": "*",
		"new_asset_settings": map[string]any{
			"playback_policy": []string{"public"},
		},
	}
	var out struct {
		Data struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := m.do(ctx, http.MethodPost, "/video/v1/uploads", reqBody, &out); err != nil {
		return models.UploadTarget{}, m.providerError(msg, err)
	}
	if out.Data.ID == "" || out.Data.URL == "" {
		return models.UploadTarget{}, &ProviderError{
			Provider: m.Name(),
			Message:  msg,
			Details:  "response is missing data.id or data.url",
		}
	}

	return models.UploadTarget{
		AssetID:   out.Data.ID,
		UploadURL: out.Data.URL,
		Provider:  m.Name(),
	}, nil
}

type muxUpload struct {
	Data struct {
		ID      string  `json:"id"`
		Status  string  `json:"status"`
		AssetID *string `json:"asset_id"`
	} `json:"data"`
}

type muxAsset struct {
	Data struct {
		ID          string   `json:"id"`
		Status      string   `json:"status"`
		Duration    *float64 `json:"duration"`
		PlaybackIDs []struct {
			ID     string `json:"id"`
			Policy string `json:"policy"`
		} `json:"playback_ids"`
	} `json:"data"`
}

// Inspect resolves a direct-upload id to its asset: status, first playback id and duration.
// An upload or asset Mux does not know yields empty details without an error.
func (m *Mux) Inspect(ctx context.Context, uploadID string) (models.HostDetails, error) {
	var details models.HostDetails
	if !m.Configured() {
		return details, nil
	}

	var up muxUpload
	err := m.do(ctx, http.MethodGet, "/video/v1/uploads/"+url.PathEscape(uploadID), nil, &up)
	if errors.Is(err, errMuxNotFound) {
		return details, nil
	}
	if err != nil {
		return details, m.providerError("Failed to load Mux upload.", err)
	}
	details.HostStatus = up.Data.Status

	if up.Data.AssetID == nil || *up.Data.AssetID == "" {
		return details, nil
	}

	var asset muxAsset
	err = m.do(ctx, http.MethodGet, "/video/v1/assets/"+url.PathEscape(*up.Data.AssetID), nil, &asset)
	if errors.Is(err, errMuxNotFound) {
		return details, nil
	}
	if err != nil {
		return details, m.providerError("Failed to load Mux asset.", err)
	}
	if asset.Data.Status != "" {
		details.HostStatus = asset.Data.Status
	}
	if len(asset.Data.PlaybackIDs) > 0 {
		details.PlaybackID = asset.Data.PlaybackIDs[0].ID
	}
	details.Duration = asset.Data.Duration
	return details, nil
}

type muxStatusError struct {
	status int
	body   string
}

func (e *muxStatusError) Error() string {
	return fmt.Sprintf("mux: status %d: %s", e.status, e.body)
}

func (m *Mux) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(m.tokenID, m.tokenSecret)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errMuxNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		m.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(raw)).
			Msg("mux request failed")
		return &muxStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (m *Mux) providerError(msg string, err error) *ProviderError {
	pe := &ProviderError{Provider: m.Name(), Message: msg, Err: err}
	var se *muxStatusError
	if errors.As(err, &se) {
		pe.StatusCode = se.status
		pe.Details = se.body
	}
	return pe
}
