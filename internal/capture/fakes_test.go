package capture

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/romariotrain/reelwork/internal/upload"
)

type fakeTrack struct {
	kind string

	mu      sync.Mutex
	stopped bool
}

func (t *fakeTrack) Kind() string { return t.kind }

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeStream struct {
	id     string
	tracks []*fakeTrack
}

func (s *fakeStream) ID() string { return s.id }

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

type fakeDevices struct {
	mu          sync.Mutex
	err         error
	calls       int
	constraints []Constraints
	streams     []*fakeStream
}

func (d *fakeDevices) GetUserMedia(_ context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.constraints = append(d.constraints, c)
	if d.err != nil {
		return nil, d.err
	}
	s := &fakeStream{
		id: fmt.Sprintf("stream-%d", d.calls),
		tracks: []*fakeTrack{
			{kind: "audio"},
			{kind: "video"},
		},
	}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevices) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDevices) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeCodecs map[string]bool

func (c fakeCodecs) IsTypeSupported(mimeType string) bool { return c[mimeType] }

func allCodecs() fakeCodecs {
	return fakeCodecs{
		"video/mp4;codecs=avc1":      true,
		"video/webm;codecs=vp8,opus": true,
	}
}

// fakeEncoder emits its queued chunks followed by OnStop when stopped.
type fakeEncoder struct {
	mu       sync.Mutex
	sink     EncoderSink
	mimeType string
	stream   Stream
	startErr error
	stopErr  error
	stops    int
	onStop   [][]byte
}

func (e *fakeEncoder) Start(stream Stream, mimeType string, sink EncoderSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	e.sink = sink
	e.mimeType = mimeType
	e.stream = stream
	return nil
}

func (e *fakeEncoder) Stop() error {
	e.mu.Lock()
	e.stops++
	sink := e.sink
	chunks := e.onStop
	stopErr := e.stopErr
	e.mu.Unlock()

	if stopErr != nil {
		return stopErr
	}
	if sink == nil {
		return nil
	}
	for _, c := range chunks {
		sink.OnData(c)
	}
	sink.OnStop()
	return nil
}

func (e *fakeEncoder) emit(chunk []byte) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	sink.OnData(chunk)
}

func (e *fakeEncoder) raise(err error) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	sink.OnError(err)
}

func (e *fakeEncoder) stopCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

type encoderFactory struct {
	mu       sync.Mutex
	encoders []*fakeEncoder
	chunks   [][]byte
	startErr error
}

func (f *encoderFactory) New() MediaEncoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &fakeEncoder{onStop: f.chunks, startErr: f.startErr}
	f.encoders = append(f.encoders, e)
	return e
}

func (f *encoderFactory) last() *fakeEncoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.encoders) == 0 {
		return nil
	}
	return f.encoders[len(f.encoders)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type manualTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *manualTicker) tick() {
	t.ch <- time.Time{}
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (f *tickerFactory) New(time.Duration) ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) last() *manualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tickers) == 0 {
		return nil
	}
	return f.tickers[len(f.tickers)-1]
}

func newTestGovernor(clock *fakeClock, tickers *tickerFactory) *Governor {
	g := NewGovernor()
	g.clock = clock.Now
	g.newTicker = tickers.New
	return g
}

type fakeUploader struct {
	mu        sync.Mutex
	ref       upload.AssetRef
	err       error
	calls     int
	body      []byte
	typ       string
	size      int64
	candidate string

	entered chan struct{}
	release chan struct{}
}

func (u *fakeUploader) Upload(ctx context.Context, p upload.Payload, candidateID string) (upload.AssetRef, error) {
	u.mu.Lock()
	u.calls++
	entered, release := u.entered, u.release
	u.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	rc, err := p.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.body = body
	u.typ = p.Type()
	u.size = p.Size()
	u.candidate = candidateID
	if u.err != nil {
		return "", u.err
	}
	return u.ref, nil
}

func (u *fakeUploader) set(ref upload.AssetRef, err error) {
	u.mu.Lock()
	u.ref, u.err = ref, err
	u.mu.Unlock()
}

func (u *fakeUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}
