package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ErrSourceChanged is returned by Open when the prefix already holds
// snapshots of a different source.
var ErrSourceChanged = errors.New("snapshot: prefix holds a different source")

const manifestName = "manifest.json"

// Manifest describes the pages rendered under a prefix.
type Manifest struct {
	SourceURL   string            `json:"source_url"`
	TotalLength int64             `json:"total_length"`
	PageCount   int               `json:"page_count"`
	Pages       []PageInfo        `json:"pages"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// PageInfo describes one stored page image.
type PageInfo struct {
	Page     int    `json:"page"`
	Object   string `json:"object"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"`
}

// Source identifies the document being snapshotted.
type Source struct {
	URL         string
	TotalLength int64
	PageCount   int
}

// Options configures a Store.
type Options struct {
	Metadata        map[string]string
	ComputeChecksum bool // Compute SHA-256 of each PNG (default: true)
}

// Option is a functional option for configuring a Store.
type Option func(*Options)

// WithMetadata sets caller-defined metadata stored in the manifest.
func WithMetadata(metadata map[string]string) Option {
	return func(o *Options) {
		o.Metadata = metadata
	}
}

// WithChecksum enables or disables checksum computation.
func WithChecksum(compute bool) Option {
	return func(o *Options) {
		o.ComputeChecksum = compute
	}
}

// Store writes page images of one document to a bucket prefix.
type Store struct {
	bucket *blob.Bucket
	prefix string
	opts   Options

	mu       sync.Mutex
	manifest Manifest
}

// Open prepares prefix for snapshots of src. Pages recorded by an earlier
// run for the same source are kept.
func Open(ctx context.Context, bucket *blob.Bucket, prefix string, src Source, options ...Option) (*Store, error) {
	opts := Options{ComputeChecksum: true}
	for _, opt := range options {
		opt(&opts)
	}

	s := &Store{
		bucket: bucket,
		prefix: strings.TrimSuffix(prefix, "/"),
		opts:   opts,
		manifest: Manifest{
			SourceURL:   src.URL,
			TotalLength: src.TotalLength,
			PageCount:   src.PageCount,
			Pages:       []PageInfo{},
			Metadata:    opts.Metadata,
		},
	}

	existing, err := ReadManifest(ctx, bucket, prefix)
	if err != nil {
		if isNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if existing.SourceURL != src.URL || existing.TotalLength != src.TotalLength {
		return nil, fmt.Errorf("%w: %s", ErrSourceChanged, existing.SourceURL)
	}
	s.manifest.Pages = existing.Pages
	return s, nil
}

func (s *Store) path(name string) string {
	return objectPath(s.prefix, name)
}

func objectPath(prefix, name string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// PageObject returns the object name of page n.
func PageObject(n int) string {
	return fmt.Sprintf("page-%06d.png", n)
}

// Has reports whether page n is already stored.
func (s *Store) Has(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(n) >= 0
}

func (s *Store) find(n int) int {
	return slices.IndexFunc(s.manifest.Pages, func(p PageInfo) bool { return p.Page == n })
}

// PutPage encodes img as PNG and stores it as page n.
func (s *Store) PutPage(ctx context.Context, n int, img image.Image) (PageInfo, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return PageInfo{}, fmt.Errorf("snapshot: encode page %d: %w", n, err)
	}

	bounds := img.Bounds()
	info := PageInfo{
		Page:   n,
		Object: PageObject(n),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Size:   int64(buf.Len()),
	}
	if s.opts.ComputeChecksum {
		sum := sha256.Sum256(buf.Bytes())
		info.Checksum = hex.EncodeToString(sum[:])
	}

	s.mu.Lock()
	source := s.manifest.SourceURL
	s.mu.Unlock()

	err := s.bucket.WriteAll(ctx, s.path(info.Object), buf.Bytes(), &blob.WriterOptions{
		ContentType: "image/png",
		Metadata: map[string]string{
			"page":   strconv.Itoa(n),
			"source": source,
		},
	})
	if err != nil {
		return PageInfo{}, fmt.Errorf("snapshot: write page %d: %w", n, err)
	}

	s.mu.Lock()
	if i := s.find(n); i >= 0 {
		s.manifest.Pages[i] = info
	} else {
		s.manifest.Pages = append(s.manifest.Pages, info)
	}
	s.mu.Unlock()

	return info, nil
}

// Manifest returns a copy of the current manifest.
func (s *Store) Manifest() Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.manifest
	m.Pages = slices.Clone(s.manifest.Pages)
	return m
}

// Commit writes the manifest. Pages are listed in page order.
func (s *Store) Commit(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	slices.SortFunc(s.manifest.Pages, func(a, b PageInfo) int { return a.Page - b.Page })
	s.manifest.UpdatedAt = time.Now()
	m := s.manifest
	m.Pages = slices.Clone(s.manifest.Pages)
	s.mu.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal manifest: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, s.path(manifestName), data, &blob.WriterOptions{
		ContentType: "application/json",
	}); err != nil {
		return nil, fmt.Errorf("snapshot: write manifest: %w", err)
	}
	return &m, nil
}

// ReadManifest reads the manifest under prefix. A missing manifest yields
// an error for which gcerrors.Code reports NotFound.
func ReadManifest(ctx context.Context, bucket *blob.Bucket, prefix string) (*Manifest, error) {
	data, err := bucket.ReadAll(ctx, objectPath(prefix, manifestName))
	if err != nil {
		return nil, fmt.Errorf("snapshot: read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Delete removes every page listed in the manifest under prefix, then the
// manifest itself.
func Delete(ctx context.Context, bucket *blob.Bucket, prefix string) error {
	m, err := ReadManifest(ctx, bucket, prefix)
	if err != nil {
		return err
	}

	for _, p := range m.Pages {
		path := objectPath(prefix, p.Object)
		if err := bucket.Delete(ctx, path); err != nil && !isNotExist(err) {
			return fmt.Errorf("snapshot: delete page %s: %w", path, err)
		}
	}

	if err := bucket.Delete(ctx, objectPath(prefix, manifestName)); err != nil {
		return fmt.Errorf("snapshot: delete manifest: %w", err)
	}
	return nil
}

func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
