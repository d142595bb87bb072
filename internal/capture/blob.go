package capture

import (
	"bytes"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Blob is a finished, deliverable media object: either an encoded recording or a selected file.
type Blob struct {
	typ  string
	size int64
	open func() (io.ReadCloser, error)
}

// NewBlob wraps in-memory bytes.
func NewBlob(mimeType string, data []byte) *Blob {
	return &Blob{
		typ:  mimeType,
		size: int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// NewStreamBlob wraps content that is re-read from its source on every Open.
func NewStreamBlob(mimeType string, size int64, open func() (io.ReadCloser, error)) *Blob {
	return &Blob{typ: mimeType, size: size, open: open}
}

// Type is the base media type, e.g. "video/webm".
func (b *Blob) Type() string { return b.typ }

// Size is the content length in bytes.
func (b *Blob) Size() int64 { return b.size }

// Open returns a fresh reader over the content. The caller closes it.
func (b *Blob) Open() (io.ReadCloser, error) { return b.open() }

// Previews hands out revocable local references to blobs for in-app playback.
// Every Create must be paired with exactly one Revoke.
type Previews struct {
	mu   sync.Mutex
	urls map[string]*Blob
}

func NewPreviews() *Previews {
	return &Previews{urls: make(map[string]*Blob)}
}

// Create registers b and returns its preview URL.
func (p *Previews) Create(b *Blob) string {
	url := "blob:reelwork/" + uuid.NewString()
	p.mu.Lock()
	p.urls[url] = b
	p.mu.Unlock()
	return url
}

// Resolve returns the blob behind a live preview URL.
func (p *Previews) Resolve(url string) (*Blob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.urls[url]
	return b, ok
}

// Revoke releases url. Unknown or empty URLs are ignored.
func (p *Previews) Revoke(url string) {
	if url == "" {
		return
	}
	p.mu.Lock()
	delete(p.urls, url)
	p.mu.Unlock()
}

// Active reports how many preview URLs are still live.
func (p *Previews) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.urls)
}
