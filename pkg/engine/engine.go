// Package engine defines the capability interfaces through which the range
// transport talks to an incremental document engine.
//
// The engine decides which byte ranges it needs and when (pull-based). The
// transport side answers each request asynchronously:
//
//	engine ──RequestFunc(begin, end)──▶ transport
//	engine ◀──SupplyRange(begin, data)── transport
//	engine ◀──FailRange(begin, end, err)── transport
//	engine ◀──ReportProgress(loaded, total)── transport
//
// Offsets are half-open: a request for [begin, end) is answered with
// end-begin bytes starting at begin, matched by the begin offset. Requests may
// overlap and complete in any order.
package engine

import (
	"context"
	"image/draw"
)

// RequestFunc asks the transport for bytes [begin, end). It must not block.
type RequestFunc func(begin, end int64)

// Transport is the engine-side endpoint of one range session. The transport
// delivers its callbacks serially, never concurrently with each other.
type Transport interface {
	// SupplyRange delivers the bytes for a request that started at begin.
	SupplyRange(begin int64, data []byte)

	// FailRange reports that the request [begin, end) will not be satisfied.
	FailRange(begin, end int64, err error)

	// ReportProgress reports cumulative bytes fetched against the resource length.
	ReportProgress(loaded, total int64)
}

// Engine is an incremental document engine.
type Engine interface {
	// OnRangeRequested creates the endpoint for a resource of length bytes.
	// The engine calls request whenever it needs data.
	OnRangeRequested(length int64, request RequestFunc) Transport

	// ResolveDocument blocks until the document behind t is usable.
	ResolveDocument(ctx context.Context, t Transport) (Document, error)
}

// Document is a resolved document handle.
type Document interface {
	// NumPages returns the total page count.
	NumPages() int

	// GetPage returns the page with 1-based number n.
	GetPage(ctx context.Context, n int) (Page, error)
}

// Page is a single page of a resolved document.
type Page interface {
	// Size returns the intrinsic pixel dimensions at scale 1.0.
	Size() (width, height int)

	// Render paints the page onto dst, whose bounds match Size.
	Render(ctx context.Context, dst draw.Image) error
}
