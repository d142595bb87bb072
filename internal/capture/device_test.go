package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceManager_AcquireRelease(t *testing.T) {
	devices := &fakeDevices{}
	m := NewDeviceManager(devices, zerolog.Nop())

	h, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Held())
	assert.Equal(t, []Constraints{{Audio: true, Video: true, FacingMode: FacingUser}}, devices.constraints)

	m.Release(h)
	m.Release(h)
	m.Release(nil)

	assert.True(t, h.Released())
	assert.Equal(t, 0, m.Held())
	for _, tr := range devices.streams[0].tracks {
		assert.True(t, tr.Stopped(), tr.kind)
	}
}

func TestDeviceManager_Errors(t *testing.T) {
	t.Run("permission denied passes through", func(t *testing.T) {
		m := NewDeviceManager(&fakeDevices{err: ErrPermissionDenied}, zerolog.Nop())
		_, err := m.Acquire(context.Background())
		require.ErrorIs(t, err, ErrPermissionDenied)
		assert.Equal(t, 0, m.Held())
	})

	t.Run("other failures are unavailable", func(t *testing.T) {
		m := NewDeviceManager(&fakeDevices{err: errors.New("NotReadableError")}, zerolog.Nop())
		_, err := m.Acquire(context.Background())
		require.ErrorIs(t, err, ErrDeviceUnavailable)
		assert.Contains(t, err.Error(), "NotReadableError")
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		m := NewDeviceManager(&fakeDevices{err: context.Canceled}, zerolog.Nop())
		_, err := m.Acquire(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrDeviceUnavailable)
	})

	t.Run("no platform", func(t *testing.T) {
		m := NewDeviceManager(nil, zerolog.Nop())
		_, err := m.Acquire(context.Background())
		require.ErrorIs(t, err, ErrDeviceUnavailable)
	})
}
