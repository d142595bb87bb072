package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/reelwork/internal/metrics"
	"github.com/romariotrain/reelwork/internal/upload"
)

// ErrCanceled is returned by Start when the attempt was canceled while acquiring the device.
var ErrCanceled = errors.New("start canceled")

// Source tells where the current blob came from.
type Source string

const (
	SourceRecording Source = "recording"
	SourceFile      Source = "file"
)

// Uploader performs the remote handoff of a finished blob.
type Uploader interface {
	Upload(ctx context.Context, p upload.Payload, candidateID string) (upload.AssetRef, error)
}

// Config wires a Session to its collaborators.
type Config struct {
	Devices  *DeviceManager
	Encoder  *EncoderAdapter
	Uploader Uploader
	Previews *Previews // defaults to NewPreviews()
	Governor *Governor // defaults to NewGovernor()

	CandidateID string
	OnUploaded  func(ref upload.AssetRef)
	OnReset     func()

	Logger zerolog.Logger
}

// Snapshot is a read-only view of a session for rendering.
type Snapshot struct {
	Status     Status
	Elapsed    time.Duration
	Remaining  time.Duration
	Error      string
	PreviewURL string
	BlobType   string
	BlobSize   int64
	Source     Source
	Uploading  bool
	CanUpload  bool
	AssetRef   upload.AssetRef
}

// Session is the recording state machine for one candidate. Exactly one capture
// attempt is live at a time; the status plus the in-flight marker serialise
// start and upload requests.
type Session struct {
	devices  *DeviceManager
	encoder  *EncoderAdapter
	uploader Uploader
	previews *Previews
	governor *Governor

	candidateID string
	onUploaded  func(upload.AssetRef)
	onReset     func()
	logger      zerolog.Logger

	mu       sync.Mutex
	status   Status
	gen      uint64
	inflight Action
	closed   bool

	handle     *StreamHandle
	rec        *Recording
	elapsed    time.Duration
	blob       *Blob
	source     Source
	previewURL string
	errMsg     string
	lastErr    error
	assetRef   upload.AssetRef
}

func NewSession(cfg Config) *Session {
	previews := cfg.Previews
	if previews == nil {
		previews = NewPreviews()
	}
	governor := cfg.Governor
	if governor == nil {
		governor = NewGovernor()
	}
	return &Session{
		devices:     cfg.Devices,
		encoder:     cfg.Encoder,
		uploader:    cfg.Uploader,
		previews:    previews,
		governor:    governor,
		candidateID: cfg.CandidateID,
		onUploaded:  cfg.OnUploaded,
		onReset:     cfg.OnReset,
		logger:      cfg.Logger.With().Str("component", "capture_session").Logger(),
		status:      StatusIdle,
	}
}

// Start begins a new recording. From ready or error it discards the previous
// blob and preview first (re-record).
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.guardLocked(ActionStart); err != nil {
		s.mu.Unlock()
		return err
	}
	s.inflight = ActionStart
	s.gen++
	gen := s.gen
	s.resetLocked()
	onReset := s.onReset
	s.mu.Unlock()

	if onReset != nil {
		onReset()
	}

	if s.devices == nil || s.encoder == nil {
		return s.startFailed(gen, nil, ErrDeviceUnavailable)
	}
	format, err := s.encoder.ChooseFormat()
	if err != nil {
		return s.startFailed(gen, nil, err)
	}
	handle, err := s.devices.Acquire(ctx)
	if err != nil {
		return s.startFailed(gen, nil, err)
	}

	s.mu.Lock()
	if s.closed || s.gen != gen {
		closed := s.closed
		s.inflight = ""
		s.mu.Unlock()
		s.devices.Release(handle)
		if closed {
			return ErrClosed
		}
		return ErrCanceled
	}

	rec, err := s.encoder.Record(handle.Stream(), format)
	if err != nil {
		s.mu.Unlock()
		return s.startFailed(gen, handle, err)
	}

	s.handle = handle
	s.rec = rec
	s.inflight = ""
	s.applyLocked(ActionStart)
	s.governor.Start(
		func(elapsed time.Duration) { s.tick(gen, elapsed) },
		func() { s.maxReached(gen) },
	)
	s.mu.Unlock()

	s.logger.Info().Str("format", format.MimeType).Msg("recording started")
	go s.await(gen, rec)
	return nil
}

// Stop ends the current recording. It is a no-op unless the session is recording,
// so a manual stop racing the automatic one resolves to a single transition.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Upload sends the ready blob through the uploader. Live recordings must have met
// MinDuration; selected files are not governed.
func (s *Session) Upload(ctx context.Context) (upload.AssetRef, error) {
	s.mu.Lock()
	if err := s.guardLocked(ActionUpload); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if s.blob == nil {
		s.mu.Unlock()
		return "", ErrNoRecording
	}
	if s.source == SourceRecording && !HasMetMinimum(s.elapsed) {
		s.mu.Unlock()
		return "", ErrMinimumDuration
	}
	if s.uploader == nil {
		s.mu.Unlock()
		return "", errors.New("no uploader configured")
	}
	s.applyLocked(ActionUpload)
	s.inflight = ActionUpload
	s.errMsg = ""
	s.lastErr = nil
	blob := s.blob
	candidateID := s.candidateID
	s.mu.Unlock()

	ref, err := s.uploader.Upload(ctx, blob, candidateID)

	s.mu.Lock()
	s.inflight = ""
	if s.closed {
		s.mu.Unlock()
		return ref, err
	}
	if err != nil {
		s.applyLocked(ActionUploadFailure)
		s.recordErrorLocked(err)
		s.mu.Unlock()
		return "", err
	}
	s.applyLocked(ActionUploadSuccess)
	s.assetRef = ref
	s.previews.Revoke(s.previewURL)
	s.previewURL = ""
	s.blob = nil
	onUploaded := s.onUploaded
	s.mu.Unlock()

	s.logger.Info().Str("asset_id", string(ref)).Msg("recording uploaded")
	if onUploaded != nil {
		onUploaded(ref)
	}
	return ref, nil
}

// Cancel releases the device and any preview and returns to idle.
// An upload in flight cannot be canceled.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.inflight == ActionUpload {
		s.mu.Unlock()
		return ErrBusy
	}
	if !CanApply(s.status, ActionCancel) {
		err := &TransitionError{From: s.status, Action: ActionCancel}
		s.mu.Unlock()
		return err
	}
	s.gen++
	s.resetLocked()
	s.applyLocked(ActionCancel)
	onReset := s.onReset
	s.mu.Unlock()

	if onReset != nil {
		onReset()
	}
	return nil
}

// SelectFile offers a pre-recorded file in place of a live capture. A valid file
// goes straight to ready; a rejected one moves the session to error.
func (s *Session) SelectFile(f File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(ActionSelectFile); err != nil {
		return err
	}
	if err := ValidateFile(f); err != nil {
		s.applyLocked(ActionFail)
		s.recordErrorLocked(err)
		return err
	}

	s.gen++
	s.resetLocked()
	s.blob = f.Blob()
	s.source = SourceFile
	s.previewURL = s.previews.Create(s.blob)
	s.applyLocked(ActionSelectFile)

	s.logger.Info().
		Str("file", f.Name).
		Str("type", f.Type).
		Int64("size", f.Size).
		Msg("file selected")
	return nil
}

// Close tears the session down from any state. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	s.releaseLocked()
	s.blob = nil
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:     s.status,
		Elapsed:    s.elapsed,
		Remaining:  Remaining(s.elapsed),
		Error:      s.errMsg,
		PreviewURL: s.previewURL,
		Source:     s.source,
		Uploading:  s.inflight == ActionUpload,
		AssetRef:   s.assetRef,
	}
	if s.blob != nil {
		snap.BlobType = s.blob.Type()
		snap.BlobSize = s.blob.Size()
		snap.CanUpload = s.inflight == "" &&
			CanApply(s.status, ActionUpload) &&
			(s.source == SourceFile || HasMetMinimum(s.elapsed))
	}
	return snap
}

// Err returns the underlying cause of the current error state, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LiveStream returns the camera stream while recording, for the live preview.
func (s *Session) LiveStream() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil
	}
	return s.handle.Stream()
}

func (s *Session) guardLocked(a Action) error {
	if s.closed {
		return ErrClosed
	}
	if s.inflight != "" {
		return ErrBusy
	}
	if !CanApply(s.status, a) {
		return &TransitionError{From: s.status, Action: a}
	}
	return nil
}

func (s *Session) applyLocked(a Action) {
	from := s.status
	to, err := Next(from, a)
	if err != nil {
		s.logger.Warn().Err(err).Msg("transition rejected")
		return
	}
	s.status = to
	if from != to {
		metrics.RecordCaptureTransition(string(from), string(to))
	}
	s.logger.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Str("action", string(a)).
		Msg("status changed")
}

func (s *Session) stopLocked() {
	if s.status != StatusRecording {
		return
	}
	if e := s.governor.Elapsed(); e > 0 {
		s.elapsed = e
	}
	s.governor.Stop()
	s.applyLocked(ActionStop)
	if s.rec != nil {
		s.rec.Stop()
	}
}

func (s *Session) tick(gen uint64, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.status == StatusRecording {
		s.elapsed = elapsed
	}
}

func (s *Session) maxReached(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.logger.Info().Dur("elapsed", s.governor.Elapsed()).Msg("maximum duration reached")
	s.stopLocked()
}

// await observes the single completion of rec and performs the finalize transition.
func (s *Session) await(gen uint64, rec *Recording) {
	<-rec.Done()
	blob, err := rec.Result()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.rec != rec {
		return
	}

	if s.status == StatusRecording && err == nil {
		// the encoder stopped on its own, e.g. the track ended
		s.stopLocked()
	}
	s.governor.Stop()
	s.devices.Release(s.handle)
	s.handle = nil
	s.rec = nil

	if err != nil {
		s.applyLocked(ActionFail)
		s.recordErrorLocked(err)
		return
	}

	s.blob = blob
	s.source = SourceRecording
	s.previewURL = s.previews.Create(blob)
	s.applyLocked(ActionFinalize)
	s.logger.Info().
		Dur("elapsed", s.elapsed).
		Int64("bytes", blob.Size()).
		Str("type", blob.Type()).
		Msg("recording ready")
}

func (s *Session) startFailed(gen uint64, handle *StreamHandle, err error) error {
	if s.devices != nil {
		s.devices.Release(handle)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = ""
	if s.closed || s.gen != gen {
		return err
	}
	s.applyLocked(ActionFail)
	s.recordErrorLocked(err)
	return err
}

func (s *Session) recordErrorLocked(err error) {
	s.errMsg = userMessage(err)
	s.lastErr = err
	metrics.RecordCaptureError(errorKind(err))
	s.logger.Error().Err(err).Str("message", s.errMsg).Msg("capture attempt failed")
}

// releaseLocked frees every resource owned by the current attempt.
func (s *Session) releaseLocked() {
	s.governor.Stop()
	if s.rec != nil {
		s.rec.Stop()
		s.rec = nil
	}
	if s.devices != nil {
		s.devices.Release(s.handle)
	}
	s.handle = nil
	s.previews.Revoke(s.previewURL)
	s.previewURL = ""
}

// resetLocked releases resources and clears per-attempt state.
func (s *Session) resetLocked() {
	s.releaseLocked()
	s.blob = nil
	s.source = ""
	s.elapsed = 0
	s.errMsg = ""
	s.lastErr = nil
	s.assetRef = ""
}
