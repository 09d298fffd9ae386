package pdfengine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ligustah/rangeview/internal/testutils"
	"github.com/ligustah/rangeview/pkg/engine"
)

// serve answers requests asynchronously from data, like the bridge does.
type serve struct {
	mu       sync.Mutex
	data     []byte
	t        engine.Transport
	requests []int64
	fail     map[int64]int
}

func (s *serve) request(begin, end int64) {
	s.mu.Lock()
	s.requests = append(s.requests, begin)
	failures := s.fail[begin]
	if failures > 0 {
		s.fail[begin] = failures - 1
	}
	t := s.t
	s.mu.Unlock()

	go func() {
		if failures > 0 {
			t.FailRange(begin, end, errors.New("server error"))
			return
		}
		t.SupplyRange(begin, s.data[begin:end])
	}()
}

func (s *serve) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func openSession(e *Engine, data []byte) (*serve, engine.Transport) {
	s := &serve{data: data, fail: make(map[int64]int)}
	s.mu.Lock()
	s.t = e.OnRangeRequested(int64(len(data)), s.request)
	s.mu.Unlock()
	return s, s.t
}

func TestResolveDocument(t *testing.T) {
	data := testutils.BuildPDF("0 0 612 792", "0 0 200.5 100")
	e := New(Options{ChunkSize: 128})
	s, tr := openSession(e, data)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc, err := e.ResolveDocument(ctx, tr)
	if err != nil {
		t.Fatalf("ResolveDocument: %v", err)
	}
	if doc.NumPages() != 2 {
		t.Fatalf("expected 2 pages, got %d", doc.NumPages())
	}

	p, err := doc.GetPage(ctx, 2)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if w, h := p.Size(); w != 201 || h != 100 {
		t.Errorf("expected 201x100, got %dx%d", w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, 201, 100))
	if err := p.Render(ctx, img); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := img.RGBAAt(10, 10); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("expected white page, got %v", got)
	}

	if _, err := doc.GetPage(ctx, 3); err == nil {
		t.Error("expected error for page 3")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		t.Error("expected range requests")
	}
	for _, begin := range s.requests {
		if begin%128 != 0 {
			t.Errorf("unaligned request at %d", begin)
		}
	}
}

func TestResolveDocumentRejectsForeignTransport(t *testing.T) {
	e := New(Options{})
	if _, err := e.ResolveDocument(context.Background(), nil); err == nil {
		t.Error("expected error for foreign transport")
	}
}

func TestResolveDocumentCancelled(t *testing.T) {
	e := New(Options{})
	tr := e.OnRangeRequested(1000, func(begin, end int64) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.ResolveDocument(ctx, tr); err == nil {
		t.Error("expected error when resolution is cancelled")
	}
}

func TestReaderReadsAcrossChunks(t *testing.T) {
	data := []byte("0123456789abcdefghijklmnopqrstuvwxyz")
	e := New(Options{ChunkSize: 8})
	s, tr := openSession(e, data)

	rr := tr.(*rangeReader)
	rr.ctx = context.Background()

	if _, err := rr.Seek(5, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got, err := io.ReadAll(rr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data[5:]) {
		t.Errorf("expected %q, got %q", data[5:], got)
	}

	// Rereading served chunks does not request them again.
	before := s.count()
	if _, err := rr.Seek(-4, io.SeekEnd); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	tail, err := io.ReadAll(rr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(tail) != "wxyz" {
		t.Errorf("expected wxyz, got %q", tail)
	}
	if n := s.count(); n != before {
		t.Errorf("expected no new requests, got %d", n-before)
	}
}

func TestReaderFailedRangeRetries(t *testing.T) {
	data := []byte("0123456789")
	e := New(Options{ChunkSize: 4})
	s, tr := openSession(e, data)
	s.fail[0] = 1

	rr := tr.(*rangeReader)
	rr.ctx = context.Background()

	buf := make([]byte, 4)
	if _, err := rr.Read(buf); err == nil {
		t.Fatal("expected error from failed range")
	}

	n, err := rr.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "0123" {
		t.Errorf("expected 0123, got %q", buf[:n])
	}
}

func TestReaderAcceptsFullBody(t *testing.T) {
	data := []byte("0123456789")
	e := New(Options{ChunkSize: 4})
	tr := e.OnRangeRequested(int64(len(data)), func(begin, end int64) {})
	rr := tr.(*rangeReader)
	rr.ctx = context.Background()

	tr.SupplyRange(4, data)

	if _, err := rr.Seek(4, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	buf := make([]byte, 4)
	n, err := rr.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "4567" {
		t.Errorf("expected 4567, got %q", buf[:n])
	}
}

func TestReaderShortBodyFails(t *testing.T) {
	e := New(Options{ChunkSize: 4})
	tr := e.OnRangeRequested(10, func(begin, end int64) {})
	rr := tr.(*rangeReader)
	rr.ctx = context.Background()

	tr.SupplyRange(0, []byte("01"))

	if _, err := rr.Read(make([]byte, 4)); err == nil {
		t.Error("expected error for short range")
	}
}

func TestReaderSeek(t *testing.T) {
	rr := newRangeReader(100, 10, func(int64, int64) {}, nil)

	tests := []struct {
		offset  int64
		whence  int
		want    int64
		wantErr bool
	}{
		{10, io.SeekStart, 10, false},
		{5, io.SeekCurrent, 15, false},
		{-10, io.SeekEnd, 90, false},
		{-200, io.SeekCurrent, 0, true},
		{0, 42, 0, true},
	}

	for _, tt := range tests {
		got, err := rr.Seek(tt.offset, tt.whence)
		if (err != nil) != tt.wantErr {
			t.Errorf("Seek(%d, %d) error = %v, wantErr %v", tt.offset, tt.whence, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("Seek(%d, %d) = %d, want %d", tt.offset, tt.whence, got, tt.want)
		}
	}

	rr.offset = 100
	if _, err := rr.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("expected EOF at end, got %v", err)
	}
}

func TestReaderProgress(t *testing.T) {
	e := New(Options{})
	tr := e.OnRangeRequested(100, func(int64, int64) {})
	tr.ReportProgress(40, 100)

	loaded, total := tr.(*rangeReader).Progress()
	if loaded != 40 || total != 100 {
		t.Errorf("expected 40/100, got %d/%d", loaded, total)
	}
}
