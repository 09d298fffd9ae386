package view

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"sync"

	"github.com/ligustah/rangeview/internal/bridge"
	"github.com/ligustah/rangeview/internal/metrics"
	"github.com/ligustah/rangeview/pkg/engine"
)

// ErrNoDocument is returned when there is no resolved document to render.
var ErrNoDocument = errors.New("view: no resolved document")

// RenderError is returned when a page cannot be rendered.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Surface is a drawing target whose size follows the rendered page.
type Surface interface {
	// Resize sets the surface to exactly width x height pixels and returns
	// the image to paint on.
	Resize(width, height int) draw.Image
}

// Canvas is an in-memory RGBA surface.
type Canvas struct {
	mu  sync.Mutex
	img *image.RGBA
}

// NewCanvas returns an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{}
}

func (c *Canvas) Resize(width, height int) draw.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	c.mu.Lock()
	c.img = img
	c.mu.Unlock()
	return img
}

// Image returns the most recently sized image, or nil.
func (c *Canvas) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img
}

// Host issues render passes.
type Host struct {
	log *slog.Logger
}

// NewHost creates a host. A nil logger uses slog.Default().
func NewHost(logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{log: logger.With("component", "view")}
}

// RenderPage renders page pageIndex (1-based) of doc onto surface.
func (h *Host) RenderPage(ctx context.Context, doc engine.Document, pageIndex int, surface Surface) error {
	if doc == nil {
		return ErrNoDocument
	}
	err := h.render(ctx, doc, pageIndex, surface)
	if err != nil {
		metrics.Renders.WithLabelValues(metrics.StatusFailure).Inc()
		h.log.Warn("render failed", "page", pageIndex, "error", err)
		return &RenderError{Page: pageIndex, Err: err}
	}
	metrics.Renders.WithLabelValues(metrics.StatusSuccess).Inc()
	return nil
}

func (h *Host) render(ctx context.Context, doc engine.Document, pageIndex int, surface Surface) error {
	if n := doc.NumPages(); pageIndex < 1 || pageIndex > n {
		return fmt.Errorf("page out of range [1, %d]", n)
	}

	page, err := doc.GetPage(ctx, pageIndex)
	if err != nil {
		return err
	}

	width, height := page.Size()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid page size %dx%d", width, height)
	}

	dst := surface.Resize(width, height)
	h.log.Debug("rendering page", "page", pageIndex, "width", width, "height", height)
	return page.Render(ctx, dst)
}

// RenderCurrent renders the current page of b's resolved document and
// returns the page number it rendered.
func (h *Host) RenderCurrent(ctx context.Context, b *bridge.Bridge, surface Surface) (int, error) {
	info := b.Info()
	if info.State != bridge.Resolved || info.Document == nil {
		return 0, ErrNoDocument
	}
	current := b.Pages().State().CurrentPage
	return current, h.RenderPage(ctx, info.Document, current, surface)
}
