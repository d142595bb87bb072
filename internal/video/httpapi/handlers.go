package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/romariotrain/reelwork/internal/video/domain"
	"github.com/romariotrain/reelwork/internal/video/models"
	"github.com/romariotrain/reelwork/internal/video/service"
	"github.com/romariotrain/reelwork/internal/video/videohost"
)

const maxBodyBytes = 64 << 10

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checks runs readiness probes in order; the first failure wins.
type Checks []func(ctx context.Context) error

func (c Checks) Ping(ctx context.Context) error {
	for _, check := range c {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

type Handler struct {
	svc    *service.Service
	ready  Pinger
	logger zerolog.Logger
}

// New builds the API handlers. ready may be nil, then readiness is always ok.
func New(svc *service.Service, ready Pinger, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		ready:  ready,
		logger: logger.With().Str("component", "httpapi").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.ready.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"detail": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateUploadURL issues a one-time upload target. No request body.
func (h *Handler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	target, err := h.svc.IssueUploadCredentials(r.Context())
	if err != nil {
		var cfgErr *videohost.ConfigError
		var provErr *videohost.ProviderError
		switch {
		case errors.As(err, &cfgErr):
			writeErrorJSON(w, http.StatusInternalServerError, cfgErr.Message, nil)
		case errors.As(err, &provErr):
			writeErrorJSON(w, http.StatusBadGateway, provErr.Message, provErr.Details)
		default:
			writeErrorJSON(w, http.StatusInternalServerError, "internal error", nil)
		}
		return
	}

	writeJSON(w, http.StatusOK, CreateUploadURLResponse{
		UploadURL: target.UploadURL,
		AssetID:   target.AssetID,
		StreamUID: target.AssetID,
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	decodeLenient(r, &req)

	if strings.TrimSpace(req.AssetID) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "Missing assetId in request body.", nil)
		return
	}

	if _, err := h.svc.RegisterUpload(r.Context(), req.AssetID, req.CandidateID); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidArgument):
			writeErrorJSON(w, http.StatusBadRequest, "Missing assetId in request body.", nil)
		case errors.Is(err, models.ErrConflict):
			writeErrorJSON(w, http.StatusConflict, "Video upload already registered.", nil)
		default:
			h.logger.Error().Err(err).Str("asset_id", req.AssetID).Msg("register upload failed")
			writeErrorJSON(w, http.StatusBadGateway, "Failed to persist video metadata.", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadId")

	var req ChangeStatusRequest
	decodeLenient(r, &req)

	u, err := h.svc.ChangeStatus(r.Context(), uploadID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidStatus):
			writeErrorJSON(w, http.StatusBadRequest, "Invalid status. Allowed values: "+domain.AllowedList()+".", nil)
		case errors.Is(err, domain.ErrInvalidTransition):
			writeErrorJSON(w, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInvalidArgument):
			writeErrorJSON(w, http.StatusNotFound, "Video upload not found.", nil)
		case errors.Is(err, models.ErrConflict):
			writeErrorJSON(w, http.StatusConflict, "Video status was changed concurrently. Reload and retry.", nil)
		default:
			h.logger.Error().Err(err).Str("asset_id", uploadID).Msg("change status failed")
			writeErrorJSON(w, http.StatusBadGateway, "Failed to update video status.", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, ChangeStatusResponse{OK: true, Status: string(u.Status)})
}

// ListVideos serves the moderation feed. A store failure yields an empty feed.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.svc.ListRecent(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list videos failed")
		videos = nil
	}
	if videos == nil {
		videos = []models.AdminVideo{}
	}
	writeJSON(w, http.StatusOK, videos)
}

// decodeLenient treats a missing or malformed body as an empty object.
func decodeLenient(r *http.Request, v any) {
	if r.Body == nil {
		return
	}
	defer r.Body.Close()
	_ = json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}
