// Package testutils provides shared test infrastructure: synthetic PDF
// documents, a range-capable HTTP server and, for integration tests, a
// Minio container.
package testutils

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// BuildPDF returns a minimal, valid PDF with one empty page per media box.
// Each media box is given as "llx lly urx ury", e.g. "0 0 612 792".
func BuildPDF(mediaBoxes ...string) []byte {
	var buf bytes.Buffer
	var offsets []int

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(mediaBoxes))
	for i := range mediaBoxes {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(mediaBoxes)))
	for _, box := range mediaBoxes {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [%s] >>", box))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// TestFile is a document served by the test server.
type TestFile struct {
	Name string
	Data []byte

	// OmitLength answers HEAD without a usable Content-Length.
	OmitLength bool
}

// TestServer is an HTTP server that serves test files with range request
// support and records the ranges it was asked for.
type TestServer struct {
	*httptest.Server

	mu     sync.Mutex
	ranges []string
	heads  int
}

// FileURL returns the URL of the named file.
func (s *TestServer) FileURL(name string) string {
	return s.URL + "/" + name
}

// Ranges returns the Range headers received so far.
func (s *TestServer) Ranges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

// Heads returns the number of HEAD requests received so far.
func (s *TestServer) Heads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads
}

// StartTestHTTPServer starts an HTTP server that serves files with range
// request support. The server is closed when the test ends.
func StartTestHTTPServer(t *testing.T, files []TestFile) *TestServer {
	t.Helper()

	fileMap := make(map[string]TestFile)
	for _, f := range files {
		fileMap["/"+f.Name] = f
	}

	s := &TestServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := fileMap[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		data := f.Data
		size := int64(len(data))

		if r.Method == http.MethodHead {
			s.mu.Lock()
			s.heads++
			s.mu.Unlock()

			if f.OmitLength {
				w.Header().Set("Content-Length", "0")
				return
			}
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Type", "application/pdf")
			return
		}

		rangeHeader := r.Header.Get("Range")
		s.mu.Lock()
		s.ranges = append(s.ranges, rangeHeader)
		s.mu.Unlock()

		if rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.Write(data)
			return
		}

		// Parse range header: bytes=start-end
		rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
		parts := strings.Split(rangeHeader, "-")
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end, _ := strconv.ParseInt(parts[1], 10, 64)

		if start >= size {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if end >= size {
			end = size - 1
		}

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
	t.Cleanup(s.Close)

	return s
}
