package pdfengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ligustah/rangeview/pkg/engine"
)

var errNoContext = errors.New("pdfengine: reader used outside of resolution")

// rangeReader is the engine side of one range session. It turns blocking
// reads into chunk-aligned range requests and waits for the transport to
// answer them.
type rangeReader struct {
	length    int64
	chunkSize int64
	request   engine.RequestFunc
	log       *slog.Logger

	mu      sync.Mutex
	chunks  map[int64][]byte
	pending map[int64]bool
	failed  map[int64]error
	changed chan struct{}
	loaded  int64
	total   int64

	// Owned by the reading goroutine.
	ctx    context.Context
	offset int64
}

var (
	_ engine.Transport = (*rangeReader)(nil)
	_ io.ReadSeeker    = (*rangeReader)(nil)
)

func newRangeReader(length, chunkSize int64, request engine.RequestFunc, logger *slog.Logger) *rangeReader {
	return &rangeReader{
		length:    length,
		chunkSize: chunkSize,
		request:   request,
		log:       logger,
		chunks:    make(map[int64][]byte),
		pending:   make(map[int64]bool),
		failed:    make(map[int64]error),
		changed:   make(chan struct{}),
	}
}

func (r *rangeReader) chunkBounds(idx int64) (int64, int64) {
	begin := idx * r.chunkSize
	return begin, min(begin+r.chunkSize, r.length)
}

func (r *rangeReader) SupplyRange(begin int64, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := begin / r.chunkSize
	chunkBegin, chunkEnd := r.chunkBounds(idx)
	if begin != chunkBegin {
		r.log.Debug("ignoring unaligned range", "begin", begin)
		return
	}

	want := chunkEnd - chunkBegin
	switch {
	case int64(len(data)) == want:
	case int64(len(data)) == r.length:
		// The server ignored the Range header and sent the whole resource.
		data = data[chunkBegin:chunkEnd]
	default:
		r.failed[idx] = fmt.Errorf("range at %d: got %d bytes, want %d", begin, len(data), want)
		r.notifyLocked(idx)
		return
	}

	r.chunks[idx] = data
	delete(r.failed, idx)
	r.notifyLocked(idx)
}

func (r *rangeReader) FailRange(begin, end int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := begin / r.chunkSize
	r.failed[idx] = err
	r.notifyLocked(idx)
}

func (r *rangeReader) ReportProgress(loaded, total int64) {
	r.mu.Lock()
	r.loaded, r.total = loaded, total
	r.mu.Unlock()
}

// Progress returns the last progress reported by the transport.
func (r *rangeReader) Progress() (loaded, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded, r.total
}

func (r *rangeReader) notifyLocked(idx int64) {
	delete(r.pending, idx)
	close(r.changed)
	r.changed = make(chan struct{})
}

// chunk returns chunk idx, requesting it if needed and waiting for it.
func (r *rangeReader) chunk(idx int64) ([]byte, error) {
	if r.ctx == nil {
		return nil, errNoContext
	}

	for {
		r.mu.Lock()
		if data, ok := r.chunks[idx]; ok {
			r.mu.Unlock()
			return data, nil
		}
		if err, ok := r.failed[idx]; ok {
			// The next read retries the range.
			delete(r.failed, idx)
			r.mu.Unlock()
			return nil, err
		}
		needRequest := !r.pending[idx]
		r.pending[idx] = true
		changed := r.changed
		r.mu.Unlock()

		if needRequest {
			begin, end := r.chunkBounds(idx)
			r.request(begin, end)
		}

		select {
		case <-changed:
		case <-r.ctx.Done():
			return nil, r.ctx.Err()
		}
	}
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.offset >= r.length {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	idx := r.offset / r.chunkSize
	data, err := r.chunk(idx)
	if err != nil {
		return 0, err
	}

	n := copy(p, data[r.offset-idx*r.chunkSize:])
	r.offset += int64(n)
	return n, nil
}

func (r *rangeReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.offset + offset
	case io.SeekEnd:
		abs = r.length + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position %d", abs)
	}
	r.offset = abs
	return abs, nil
}
