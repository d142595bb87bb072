package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// FacingUser asks for the front-facing camera.
const FacingUser = "user"

// Constraints describe the capture request passed to the platform.
type Constraints struct {
	Audio      bool
	Video      bool
	FacingMode string
}

// Track is one live audio or video track.
type Track interface {
	Kind() string
	Stop()
}

// Stream is a live camera/microphone stream.
type Stream interface {
	ID() string
	Tracks() []Track
}

// MediaDevices is the platform capture surface. Implementations should return errors
// matching ErrPermissionDenied when the user or OS refuses access; anything else is
// reported as ErrDeviceUnavailable.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// StreamHandle is exclusive ownership of one acquired stream.
type StreamHandle struct {
	stream   Stream
	once     sync.Once
	released bool
	mu       sync.Mutex
}

// Stream returns the underlying stream.
func (h *StreamHandle) Stream() Stream {
	return h.stream
}

// Released reports whether the tracks have been stopped.
func (h *StreamHandle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// DeviceManager acquires and releases the camera/microphone.
type DeviceManager struct {
	devices MediaDevices
	logger  zerolog.Logger

	mu   sync.Mutex
	held int
}

func NewDeviceManager(devices MediaDevices, logger zerolog.Logger) *DeviceManager {
	return &DeviceManager{
		devices: devices,
		logger:  logger.With().Str("component", "capture_device").Logger(),
	}
}

// Acquire requests combined audio+video access with the front camera preferred.
func (m *DeviceManager) Acquire(ctx context.Context) (*StreamHandle, error) {
	if m.devices == nil {
		return nil, ErrDeviceUnavailable
	}
	stream, err := m.devices.GetUserMedia(ctx, Constraints{
		Audio:      true,
		Video:      true,
		FacingMode: FacingUser,
	})
	if err != nil {
		return nil, classifyDeviceError(ctx, err)
	}
	if stream == nil {
		return nil, ErrDeviceUnavailable
	}

	m.mu.Lock()
	m.held++
	m.mu.Unlock()

	m.logger.Debug().Str("stream_id", stream.ID()).Msg("stream acquired")
	return &StreamHandle{stream: stream}, nil
}

// Release stops every track of h. Safe on nil and on already released handles.
func (m *DeviceManager) Release(h *StreamHandle) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		for _, t := range h.stream.Tracks() {
			t.Stop()
		}
		h.mu.Lock()
		h.released = true
		h.mu.Unlock()

		m.mu.Lock()
		m.held--
		m.mu.Unlock()

		m.logger.Debug().Str("stream_id", h.stream.ID()).Msg("stream released")
	})
}

// Held reports how many acquired streams have not been released yet.
func (m *DeviceManager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

func classifyDeviceError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
