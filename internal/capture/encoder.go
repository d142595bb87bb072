package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Format is a container/codec combination understood by the platform encoder.
type Format struct {
	MimeType string
}

// BaseType is the container type without codec parameters.
func (f Format) BaseType() string {
	base, _, _ := strings.Cut(f.MimeType, ";")
	return strings.TrimSpace(base)
}

// PreferredFormats is the probe order: H.264 in MP4 first, VP8/Opus in WebM as fallback.
var PreferredFormats = []Format{
	{MimeType: "video/mp4;codecs=avc1"},
	{MimeType: "video/webm;codecs=vp8,opus"},
}

// CodecSupport answers whether the platform can encode a MIME type.
type CodecSupport interface {
	IsTypeSupported(mimeType string) bool
}

// EncoderSink receives events from a platform encoder, in emission order.
type EncoderSink interface {
	OnData(chunk []byte)
	OnStop()
	OnError(err error)
}

// MediaEncoder is a platform encoder bound to a single recording.
// Stop asks it to flush; completion is signalled through EncoderSink.OnStop.
type MediaEncoder interface {
	Start(stream Stream, mimeType string, sink EncoderSink) error
	Stop() error
}

// EncoderAdapter picks a format and turns encoder callbacks into a Recording.
type EncoderAdapter struct {
	codecs     CodecSupport
	newEncoder func() MediaEncoder
}

func NewEncoderAdapter(codecs CodecSupport, newEncoder func() MediaEncoder) *EncoderAdapter {
	return &EncoderAdapter{codecs: codecs, newEncoder: newEncoder}
}

// ChooseFormat returns the first supported entry of PreferredFormats.
func (a *EncoderAdapter) ChooseFormat() (Format, error) {
	if a.codecs == nil {
		return Format{}, ErrNoSupportedFormat
	}
	for _, f := range PreferredFormats {
		if a.codecs.IsTypeSupported(f.MimeType) {
			return f, nil
		}
	}
	return Format{}, ErrNoSupportedFormat
}

// Record starts encoding stream in format f.
func (a *EncoderAdapter) Record(stream Stream, f Format) (*Recording, error) {
	if a.newEncoder == nil {
		return nil, fmt.Errorf("%w: no encoder available", ErrEncoder)
	}
	enc := a.newEncoder()
	rec := &Recording{
		format: f,
		enc:    enc,
		done:   make(chan struct{}),
	}
	if err := enc.Start(stream, f.MimeType, recordingSink{rec}); err != nil {
		rec.fail(err)
		return nil, fmt.Errorf("%w: start: %v", ErrEncoder, err)
	}
	return rec, nil
}

// Recording is one in-progress encode. Its outcome is observed once through
// Done/Result or Wait.
type Recording struct {
	format Format
	enc    MediaEncoder

	mu       sync.Mutex
	chunks   [][]byte
	finished bool
	blob     *Blob
	err      error

	stopOnce sync.Once
	done     chan struct{}
}

// Format is the format this recording was started with.
func (r *Recording) Format() Format { return r.format }

// Stop asks the encoder to finish. Safe to call more than once.
func (r *Recording) Stop() {
	r.stopOnce.Do(func() {
		if err := r.enc.Stop(); err != nil {
			r.fail(err)
		}
	})
}

// Done is closed once the recording has a final blob or an error.
func (r *Recording) Done() <-chan struct{} { return r.done }

// Result returns the outcome. Only meaningful after Done is closed.
func (r *Recording) Result() (*Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blob, r.err
}

// Wait blocks until the recording completes or ctx ends.
func (r *Recording) Wait(ctx context.Context) (*Blob, error) {
	select {
	case <-r.done:
		return r.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Recording) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.chunks = append(r.chunks, cp)
}

func (r *Recording) finalize() {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	var size int
	for _, c := range r.chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range r.chunks {
		data = append(data, c...)
	}
	r.blob = NewBlob(r.format.BaseType(), data)
	r.chunks = nil
	r.finished = true
	r.mu.Unlock()

	close(r.done)
}

func (r *Recording) fail(err error) {
	if !errors.Is(err, ErrEncoder) {
		err = fmt.Errorf("%w: %v", ErrEncoder, err)
	}
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.err = err
	r.chunks = nil
	r.finished = true
	r.mu.Unlock()

	close(r.done)
}

type recordingSink struct{ r *Recording }

func (s recordingSink) OnData(chunk []byte) { s.r.append(chunk) }
func (s recordingSink) OnStop()             { s.r.finalize() }
func (s recordingSink) OnError(err error) {
	if err == nil {
		err = errors.New("unknown encoder error")
	}
	s.r.fail(err)
}
