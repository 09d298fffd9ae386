package pdfengine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/ligustah/rangeview/pkg/engine"
)

// DefaultChunkSize is the read granularity used when none is configured.
const DefaultChunkSize int64 = 64 * 1024

var disableConfigDir sync.Once

// Options configures an Engine.
type Options struct {
	// ChunkSize is the size of each range request. Default: DefaultChunkSize.
	ChunkSize int64

	// Logger is the structured logger. Default: slog.Default().
	Logger *slog.Logger
}

// Engine resolves PDF documents with pdfcpu, reading them through the
// range protocol.
type Engine struct {
	chunkSize int64
	log       *slog.Logger
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine.
func New(opts Options) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	disableConfigDir.Do(api.DisableConfigDir)

	return &Engine{
		chunkSize: opts.ChunkSize,
		log:       opts.Logger.With("component", "pdfengine"),
	}
}

func (e *Engine) OnRangeRequested(length int64, request engine.RequestFunc) engine.Transport {
	e.log.Debug("range session opened", "length", length, "chunk_size", e.chunkSize)
	return newRangeReader(length, e.chunkSize, request, e.log)
}

// ResolveDocument parses the document behind t. Reads block on range
// deliveries until ctx is done.
func (e *Engine) ResolveDocument(ctx context.Context, t engine.Transport) (engine.Document, error) {
	rr, ok := t.(*rangeReader)
	if !ok {
		return nil, fmt.Errorf("pdfengine: unsupported transport %T", t)
	}
	rr.ctx = ctx

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdf, err := api.ReadContext(rr, conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if err := pdf.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}

	dims, err := pdf.PageDims()
	if err != nil {
		return nil, fmt.Errorf("page dimensions: %w", err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	e.log.Debug("document parsed", "pages", len(dims))
	return newDocument(dims), nil
}

type document struct {
	pages []*page
}

func newDocument(dims []types.Dim) *document {
	doc := &document{pages: make([]*page, len(dims))}
	for i, d := range dims {
		doc.pages[i] = &page{
			width:  int(math.Ceil(d.Width)),
			height: int(math.Ceil(d.Height)),
		}
	}
	return doc
}

func (d *document) NumPages() int {
	return len(d.pages)
}

func (d *document) GetPage(ctx context.Context, n int) (engine.Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [1, %d]", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

// page paints the blank page media at one pixel per point. Content
// rasterisation is left to richer engines.
type page struct {
	width, height int
}

func (p *page) Size() (int, int) {
	return p.width, p.height
}

func (p *page) Render(ctx context.Context, dst draw.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return nil
}
