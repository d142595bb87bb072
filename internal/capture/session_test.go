package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/romariotrain/reelwork/internal/upload"
)

type harness struct {
	devices  *fakeDevices
	dm       *DeviceManager
	encoders *encoderFactory
	clock    *fakeClock
	tickers  *tickerFactory
	uploader *fakeUploader
	previews *Previews
	session  *Session

	mu       sync.Mutex
	uploaded []upload.AssetRef
	resets   int
}

func newHarness(t *testing.T, codecs CodecSupport) *harness {
	t.Helper()

	h := &harness{
		devices:  &fakeDevices{},
		encoders: &encoderFactory{chunks: [][]byte{[]byte("c1"), []byte("c2"), []byte("c3")}},
		clock:    newFakeClock(),
		tickers:  &tickerFactory{},
		uploader: &fakeUploader{ref: "asset-1"},
		previews: NewPreviews(),
	}
	h.dm = NewDeviceManager(h.devices, zerolog.Nop())
	h.session = NewSession(Config{
		Devices:     h.dm,
		Encoder:     NewEncoderAdapter(codecs, h.encoders.New),
		Uploader:    h.uploader,
		Previews:    h.previews,
		Governor:    newTestGovernor(h.clock, h.tickers),
		CandidateID: "cand-7",
		OnUploaded: func(ref upload.AssetRef) {
			h.mu.Lock()
			h.uploaded = append(h.uploaded, ref)
			h.mu.Unlock()
		},
		OnReset: func() {
			h.mu.Lock()
			h.resets++
			h.mu.Unlock()
		},
		Logger: zerolog.Nop(),
	})
	t.Cleanup(h.session.Close)
	return h
}

func (h *harness) status() Status {
	return h.session.Snapshot().Status
}

func (h *harness) waitStatus(t *testing.T, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return h.status() == want },
		time.Second, 5*time.Millisecond, "want status %s, have %s", want, h.status())
}

// record runs one capture of the given length and waits for the blob.
func (h *harness) record(t *testing.T, length time.Duration) {
	t.Helper()
	require.NoError(t, h.session.Start(context.Background()))
	require.Equal(t, StatusRecording, h.status())
	h.clock.Advance(length)
	h.session.Stop()
	h.waitStatus(t, StatusReady)
}

func TestSession_RecordAndUpload(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())

	require.NoError(t, h.session.Start(context.Background()))
	assert.Equal(t, StatusRecording, h.status())
	assert.Equal(t, 1, h.dm.Held())
	assert.NotNil(t, h.session.LiveStream())

	h.clock.Advance(31 * time.Second)
	h.session.Stop()
	h.waitStatus(t, StatusReady)

	snap := h.session.Snapshot()
	assert.Equal(t, 31*time.Second, snap.Elapsed)
	assert.Equal(t, "video/mp4", snap.BlobType)
	assert.Equal(t, int64(6), snap.BlobSize)
	assert.Equal(t, SourceRecording, snap.Source)
	assert.NotEmpty(t, snap.PreviewURL)
	assert.True(t, snap.CanUpload)
	assert.Equal(t, 0, h.dm.Held())
	assert.Nil(t, h.session.LiveStream())
	assert.Equal(t, 1, h.previews.Active())

	ref, err := h.session.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, upload.AssetRef("asset-1"), ref)

	assert.Equal(t, []byte("c1c2c3"), h.uploader.body)
	assert.Equal(t, "video/mp4", h.uploader.typ)
	assert.Equal(t, "cand-7", h.uploader.candidate)

	snap = h.session.Snapshot()
	assert.Equal(t, StatusUploaded, snap.Status)
	assert.Equal(t, upload.AssetRef("asset-1"), snap.AssetRef)
	assert.Empty(t, snap.PreviewURL)
	assert.Zero(t, snap.BlobSize)
	assert.Equal(t, 0, h.previews.Active())

	h.mu.Lock()
	assert.Equal(t, []upload.AssetRef{"asset-1"}, h.uploaded)
	h.mu.Unlock()

	err = h.session.Start(context.Background())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSession_UploadBelowMinimumRejected(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())

	h.record(t, 10*time.Second)
	assert.False(t, h.session.Snapshot().CanUpload)

	_, err := h.session.Upload(context.Background())
	require.ErrorIs(t, err, ErrMinimumDuration)
	assert.Equal(t, StatusReady, h.status())
	assert.Equal(t, 0, h.uploader.callCount())
}

func TestSession_AutoStopAtMaximum(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())

	require.NoError(t, h.session.Start(context.Background()))
	tk := h.tickers.last()
	require.NotNil(t, tk)

	h.clock.Advance(20 * time.Second)
	tk.tick()
	require.Eventually(t, func() bool {
		return h.session.Snapshot().Elapsed == 20*time.Second
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 25*time.Second, h.session.Snapshot().Remaining)

	h.clock.Advance(25 * time.Second)
	tk.tick()
	h.waitStatus(t, StatusReady)

	// a late manual stop must not produce a second transition
	h.session.Stop()

	enc := h.encoders.last()
	assert.Equal(t, 1, enc.stopCount())
	assert.Equal(t, MaxDuration, h.session.Snapshot().Elapsed)
	assert.Equal(t, StatusReady, h.status())
	assert.Equal(t, 0, h.dm.Held())
}

func TestSession_UploadFailureReleasesAndRetries(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())

	h.record(t, 31*time.Second)
	h.uploader.set("", &upload.StageError{
		Stage:      upload.StageCredentials,
		StatusCode: 500,
		Message:    "Unable to create upload URL.",
		Err:        upload.ErrCredentialRequestFailed,
	})

	_, err := h.session.Upload(context.Background())
	require.ErrorIs(t, err, upload.ErrCredentialRequestFailed)
	require.ErrorIs(t, h.session.Err(), upload.ErrCredentialRequestFailed)

	snap := h.session.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "Unable to create upload URL.", snap.Error)
	assert.Equal(t, 0, h.dm.Held())
	assert.True(t, snap.CanUpload, "blob is retained for a retry")

	h.uploader.set("asset-2", nil)
	ref, err := h.session.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, upload.AssetRef("asset-2"), ref)
	assert.Equal(t, StatusUploaded, h.status())
	assert.Empty(t, h.session.Snapshot().Error)
}

func TestSession_ReRecordRevokesPreview(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())

	h.record(t, 31*time.Second)
	first := h.session.Snapshot().PreviewURL

	require.NoError(t, h.session.Start(context.Background()))
	_, ok := h.previews.Resolve(first)
	assert.False(t, ok)
	assert.Equal(t, 0, h.previews.Active())
	assert.LessOrEqual(t, h.dm.Held(), 1)
	assert.Zero(t, h.session.Snapshot().BlobSize)

	h.clock.Advance(32 * time.Second)
	h.session.Stop()
	h.waitStatus(t, StatusReady)

	second := h.session.Snapshot().PreviewURL
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, h.previews.Active())
	assert.Equal(t, 0, h.dm.Held())

	h.mu.Lock()
	assert.Equal(t, 2, h.resets)
	h.mu.Unlock()
}

func TestSession_CancelWhileRecording(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())

	require.NoError(t, h.session.Start(context.Background()))
	h.clock.Advance(5 * time.Second)

	require.NoError(t, h.session.Cancel())
	assert.Equal(t, StatusIdle, h.status())
	assert.Equal(t, 0, h.dm.Held())
	assert.Equal(t, 1, h.encoders.last().stopCount())

	// the finalized blob of the canceled attempt is dropped
	assert.Never(t, func() bool { return h.status() != StatusIdle }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 0, h.previews.Active())
	assert.Zero(t, h.session.Snapshot().Elapsed)
}

func TestSession_CancelRejectedDuringUpload(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())
	h.record(t, 40*time.Second)

	h.uploader.entered = make(chan struct{})
	h.uploader.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.session.Upload(context.Background())
		done <- err
	}()
	<-h.uploader.entered

	assert.True(t, h.session.Snapshot().Uploading)
	require.ErrorIs(t, h.session.Cancel(), ErrBusy)
	_, err := h.session.Upload(context.Background())
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, h.session.Start(context.Background()), ErrBusy)

	close(h.uploader.release)
	require.NoError(t, <-done)
	assert.Equal(t, StatusUploaded, h.status())
}

func TestSession_StartFailures(t *testing.T) {
	t.Run("permission denied", func(t *testing.T) {
		h := newHarness(t, allCodecs())
		h.devices.setErr(ErrPermissionDenied)

		err := h.session.Start(context.Background())
		require.ErrorIs(t, err, ErrPermissionDenied)

		snap := h.session.Snapshot()
		assert.Equal(t, StatusError, snap.Status)
		assert.Contains(t, snap.Error, "permissions")
		assert.Equal(t, 0, h.dm.Held())

		// retry after the user grants access
		h.devices.setErr(nil)
		require.NoError(t, h.session.Start(context.Background()))
		assert.Equal(t, StatusRecording, h.status())
		assert.Empty(t, h.session.Snapshot().Error)
	})

	t.Run("no supported format", func(t *testing.T) {
		h := newHarness(t, fakeCodecs{})

		err := h.session.Start(context.Background())
		require.ErrorIs(t, err, ErrNoSupportedFormat)
		assert.Equal(t, StatusError, h.status())
		assert.Equal(t, 0, h.devices.callCount(), "device is not requested without a format")
	})

	t.Run("encoder start failure releases the device", func(t *testing.T) {
		h := newHarness(t, allCodecs())
		h.encoders.startErr = errors.New("boom")

		err := h.session.Start(context.Background())
		require.ErrorIs(t, err, ErrEncoder)
		assert.Equal(t, StatusError, h.status())
		assert.Equal(t, 0, h.dm.Held())
	})
}

func TestSession_EncoderErrorWhileRecording(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())

	require.NoError(t, h.session.Start(context.Background()))
	h.encoders.last().raise(errors.New("track ended"))

	h.waitStatus(t, StatusError)
	snap := h.session.Snapshot()
	assert.Equal(t, "Recording failed. Please try again.", snap.Error)
	assert.Zero(t, snap.BlobSize)
	assert.Equal(t, 0, h.dm.Held())
	require.NotNil(t, h.tickers.last())
	require.Eventually(t, h.tickers.last().Stopped, time.Second, 5*time.Millisecond)
}

func TestSession_StartWhileRecordingRejected(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())
	defer h.session.Close()

	require.NoError(t, h.session.Start(context.Background()))
	err := h.session.Start(context.Background())
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, h.devices.callCount())
	assert.Equal(t, 1, h.dm.Held())
}

func TestSession_SelectFileBypassesMinimum(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())

	const size = 50 << 20
	file := File{
		Name: "intro.mp4",
		Type: "video/mp4",
		Size: size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(make([]byte, size))), nil
		},
	}
	require.NoError(t, h.session.SelectFile(file))

	snap := h.session.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, SourceFile, snap.Source)
	assert.True(t, snap.CanUpload)
	assert.NotEmpty(t, snap.PreviewURL)
	assert.Equal(t, 0, h.devices.callCount())

	_, err := h.session.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(size), h.uploader.size)
	assert.Equal(t, "video/mp4", h.uploader.typ)
	assert.Equal(t, StatusUploaded, h.status())
	assert.Equal(t, 0, h.previews.Active())
}

func TestSession_SelectFileRejected(t *testing.T) {
	h := newHarness(t, allCodecs())

	err := h.session.SelectFile(File{Name: "cv.pdf", Type: "application/pdf", Size: 10})
	require.ErrorIs(t, err, ErrInvalidFileType)
	snap := h.session.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "Please select a valid video file.", snap.Error)

	err = h.session.SelectFile(File{Name: "big.mp4", Type: "video/mp4", Size: MaxFileSize + 1})
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, "Video file must be under 200MB.", h.session.Snapshot().Error)

	_, err = h.session.Upload(context.Background())
	require.ErrorIs(t, err, ErrNoRecording)
}

func TestSession_SelectFileReplacesRecording(t *testing.T) {
	h := newHarness(t, allCodecs())
	h.record(t, 31*time.Second)
	recorded := h.session.Snapshot().PreviewURL

	require.NoError(t, h.session.SelectFile(File{
		Name: "intro.webm",
		Type: "video/webm",
		Size: 3,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader([]byte("abc"))), nil },
	}))

	_, ok := h.previews.Resolve(recorded)
	assert.False(t, ok)
	assert.Equal(t, 1, h.previews.Active())
	assert.Equal(t, "video/webm", h.session.Snapshot().BlobType)
}

func TestSession_CloseTearsDown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, allCodecs())

	require.NoError(t, h.session.Start(context.Background()))
	h.session.Close()
	h.session.Close()

	assert.Equal(t, 0, h.dm.Held())
	assert.Equal(t, 0, h.previews.Active())
	require.ErrorIs(t, h.session.Start(context.Background()), ErrClosed)
	require.ErrorIs(t, h.session.Cancel(), ErrClosed)
}

func TestSession_UploadRequiresBlob(t *testing.T) {
	h := newHarness(t, allCodecs())

	_, err := h.session.Upload(context.Background())
	require.ErrorIs(t, err, ErrInvalidTransition)
}
