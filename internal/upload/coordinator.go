// Package upload hands a finished recording to the video host in three strictly
// ordered stages: request one-time credentials, transfer the bytes, register the asset.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/reelwork/internal/metrics"
)

const (
	DefaultCredentialPath = "/api/videos/create-upload-url"
	DefaultRegisterPath   = "/api/videos/register"

	maxErrorBody = 64 << 10
)

// Payload is the content handed to the video host.
type Payload interface {
	Type() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// Details are single-use upload credentials. They are requested fresh for every attempt.
type Details struct {
	AssetID   string
	UploadURL string
}

// AssetRef identifies the uploaded asset at the video host.
type AssetRef string

// Config configures a Coordinator.
type Config struct {
	BaseURL        string
	CredentialPath string
	RegisterPath   string
	HTTPClient     *http.Client

	// Zero disables the per-stage timeout.
	CredentialTimeout time.Duration
	TransferTimeout   time.Duration
	RegisterTimeout   time.Duration

	Logger zerolog.Logger
}

// Coordinator runs the credentials -> transfer -> register sequence.
type Coordinator struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

func New(cfg Config) (*Coordinator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.CredentialTimeout < 0 || cfg.TransferTimeout < 0 || cfg.RegisterTimeout < 0 {
		return nil, fmt.Errorf("timeouts cannot be negative")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.CredentialPath == "" {
		cfg.CredentialPath = DefaultCredentialPath
	}
	if cfg.RegisterPath == "" {
		cfg.RegisterPath = DefaultRegisterPath
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Coordinator{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger.With().Str("component", "upload_coordinator").Logger(),
	}, nil
}

// Upload runs all three stages. Any stage failure aborts the rest and is returned
// as a *StageError; bytes already transferred are not rolled back.
func (c *Coordinator) Upload(ctx context.Context, p Payload, candidateID string) (AssetRef, error) {
	if p == nil {
		return "", &StageError{Stage: StageTransfer, Message: "Nothing to upload.", Err: ErrTransferFailed}
	}

	details, err := c.RequestCredentials(ctx)
	if err != nil {
		return "", err
	}
	if err := c.Transfer(ctx, details, p); err != nil {
		return "", err
	}
	if err := c.Register(ctx, details.AssetID, candidateID); err != nil {
		return "", err
	}

	c.logger.Info().
		Str("asset_id", details.AssetID).
		Int64("bytes", p.Size()).
		Msg("upload completed")
	return AssetRef(details.AssetID), nil
}

type credentialResponse struct {
	UploadURL string `json:"uploadURL"`
	AssetID   string `json:"assetId"`
	StreamUID string `json:"streamUID"`
}

type errorResponse struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// RequestCredentials asks the API for a one-time upload target.
func (c *Coordinator) RequestCredentials(ctx context.Context) (Details, error) {
	const fallback = "Unable to create upload URL."
	started := time.Now()

	ctx, cancel := withTimeout(ctx, c.cfg.CredentialTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.CredentialPath, nil)
	if err != nil {
		return Details{}, c.fail(StageCredentials, started, 0, fallback, err.Error(), err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Details{}, c.fail(StageCredentials, started, 0, fallback, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, detail := readError(resp.Body, fallback)
		return Details{}, c.fail(StageCredentials, started, resp.StatusCode, msg, detail, nil)
	}

	var body credentialResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Details{}, c.fail(StageCredentials, started, resp.StatusCode, fallback, "decode: "+err.Error(), err)
	}
	assetID := body.AssetID
	if assetID == "" {
		assetID = body.StreamUID
	}
	if assetID == "" || body.UploadURL == "" {
		return Details{}, c.fail(StageCredentials, started, resp.StatusCode, fallback, "response without uploadURL or assetId", nil)
	}

	metrics.ObserveUploadStage(string(StageCredentials), "success", time.Since(started))
	return Details{AssetID: assetID, UploadURL: body.UploadURL}, nil
}

// Transfer PUTs the payload to the one-time URL. Single attempt, no retry.
func (c *Coordinator) Transfer(ctx context.Context, d Details, p Payload) error {
	const msg = "Failed to upload video to the video host."
	started := time.Now()

	ctx, cancel := withTimeout(ctx, c.cfg.TransferTimeout)
	defer cancel()

	body, err := p.Open()
	if err != nil {
		return c.fail(StageTransfer, started, 0, msg, "open payload: "+err.Error(), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, d.UploadURL, body)
	if err != nil {
		body.Close()
		return c.fail(StageTransfer, started, 0, msg, err.Error(), err)
	}
	req.ContentLength = p.Size()
	req.Header.Set("Content-Type", p.Type())

	resp, err := c.client.Do(req)
	if err != nil {
		return c.fail(StageTransfer, started, 0, msg, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.fail(StageTransfer, started, resp.StatusCode, msg, string(detail), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	metrics.ObserveUploadStage(string(StageTransfer), "success", time.Since(started))
	return nil
}

type registerRequest struct {
	AssetID     string `json:"assetId"`
	CandidateID string `json:"candidateId,omitempty"`
}

// Register records the asset (and optional candidate) in the metadata store.
func (c *Coordinator) Register(ctx context.Context, assetID, candidateID string) error {
	const fallback = "Failed to register video upload."
	started := time.Now()

	ctx, cancel := withTimeout(ctx, c.cfg.RegisterTimeout)
	defer cancel()

	payload, err := json.Marshal(registerRequest{AssetID: assetID, CandidateID: candidateID})
	if err != nil {
		return c.fail(StageRegister, started, 0, fallback, err.Error(), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.RegisterPath, bytes.NewReader(payload))
	if err != nil {
		return c.fail(StageRegister, started, 0, fallback, err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return c.fail(StageRegister, started, 0, fallback, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, detail := readError(resp.Body, fallback)
		return c.fail(StageRegister, started, resp.StatusCode, msg, detail, nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	metrics.ObserveUploadStage(string(StageRegister), "success", time.Since(started))
	return nil
}

func (c *Coordinator) fail(stage Stage, started time.Time, status int, msg, detail string, cause error) error {
	metrics.ObserveUploadStage(string(stage), "failure", time.Since(started))

	err := &StageError{
		Stage:      stage,
		StatusCode: status,
		Message:    msg,
		Detail:     detail,
		Err:        cause,
	}
	if cause == nil {
		err.Err = stage.sentinel()
	}

	c.logger.Error().
		Str("stage", string(stage)).
		Int("status_code", status).
		Str("detail", detail).
		Err(cause).
		Msg("upload stage failed")
	return err
}

// readError extracts {error, details} from a non-2xx body.
func readError(r io.Reader, fallback string) (string, string) {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err != nil || strings.TrimSpace(body.Error) == "" {
		return fallback, string(raw)
	}
	detail := string(raw)
	if len(body.Details) > 0 {
		detail = string(body.Details)
	}
	return body.Error, detail
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// IsStage reports whether err failed at the given stage.
func IsStage(err error, stage Stage) bool {
	var se *StageError
	return errors.As(err, &se) && se.Stage == stage
}
