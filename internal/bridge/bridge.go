package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/ligustah/rangeview/internal/metrics"
	"github.com/ligustah/rangeview/internal/page"
	"github.com/ligustah/rangeview/internal/progress"
	"github.com/ligustah/rangeview/pkg/engine"
)

// Fetcher performs the network requests of a session.
type Fetcher interface {
	HeadSize(ctx context.Context, resourceID string) (int64, error)
	FetchRange(ctx context.Context, resourceID string, begin, end int64) ([]byte, error)
}

// Options configures a Bridge. Callbacks run on the bridge loop; they must
// not block and must not call Close.
type Options struct {
	// Fetcher issues HEAD and range requests (required).
	Fetcher Fetcher

	// Engine consumes ranges and resolves documents (required).
	Engine engine.Engine

	// Tracker receives progress. Default: a new tracker.
	Tracker *progress.Tracker

	// Pages is reset on resource change and initialised on resolution.
	// Default: a new controller.
	Pages *page.Controller

	// RangeCacheEntries enables a per-session LRU of fetched ranges.
	// Zero disables it, so every request hits the network.
	RangeCacheEntries int

	// ValidateResource rejects identifiers that cannot be fetched.
	// Default: ValidateURL.
	ValidateResource func(string) error

	// OnError receives discovery and resolution failures of the live session.
	OnError func(error)

	// OnResolved is called once the live session's document resolves.
	OnResolved func(Info)

	// Logger is the structured logger. Default: slog.Default().
	Logger *slog.Logger
}

// Bridge answers the range requests of an engine with network fetches for
// one resource at a time.
//
// All state transitions run serially on an internal loop. Network calls and
// engine resolution run on their own goroutines and hand their results back
// to the loop, where they are checked against the live session before they
// take effect. Changing the resource never cancels in-flight fetches; their
// results are discarded on arrival.
type Bridge struct {
	opts Options
	log  *slog.Logger

	// ctx is the parent of every network call. It is never cancelled by a
	// resource change.
	ctx context.Context

	queue     *queue
	loopDone  chan struct{}
	closeOnce sync.Once
	inflight  conc.WaitGroup

	// Loop-owned.
	state      State
	generation uint64
	resourceID string
	session    *session
	mounted    bool
	discarded  uint64

	snapshot atomic.Pointer[Info]
}

// New creates a bridge and starts its loop. ctx parents every network call.
func New(ctx context.Context, opts Options) (*Bridge, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("bridge: fetcher is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("bridge: engine is required")
	}
	if opts.RangeCacheEntries < 0 {
		return nil, fmt.Errorf("bridge: range cache entries must not be negative")
	}
	if opts.Tracker == nil {
		opts.Tracker = progress.NewTracker()
	}
	if opts.Pages == nil {
		opts.Pages = page.NewController()
	}
	if opts.ValidateResource == nil {
		opts.ValidateResource = ValidateURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	b := &Bridge{
		opts:     opts,
		log:      opts.Logger.With("component", "bridge"),
		ctx:      ctx,
		queue:    newQueue(),
		loopDone: make(chan struct{}),
		mounted:  true,
	}
	b.publish()

	go b.loop()

	return b, nil
}

// Tracker returns the progress tracker fed by this bridge.
func (b *Bridge) Tracker() *progress.Tracker {
	return b.opts.Tracker
}

// Pages returns the page controller driven by this bridge.
func (b *Bridge) Pages() *page.Controller {
	return b.opts.Pages
}

// Info returns the latest snapshot. It is safe to call from any goroutine,
// including bridge callbacks.
func (b *Bridge) Info() Info {
	return *b.snapshot.Load()
}

// SetResource switches the bridge to resourceID. The previous session is
// abandoned and an empty or invalid identifier leaves the bridge idle.
func (b *Bridge) SetResource(resourceID string) {
	b.queue.post(func() { b.changeResource(resourceID) })
}

// Close stops observing. Pending transitions are suppressed and later
// results are dropped; requests already issued are left to complete.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.call(b.unmount)
		b.queue.close()
		<-b.loopDone
	})
}

// Wait blocks until every network call and resolution issued so far has
// returned. Call it after Close to drain goroutines.
func (b *Bridge) Wait() {
	b.inflight.Wait()
}

func (b *Bridge) loop() {
	defer close(b.loopDone)
	for {
		fns, ok := b.queue.next()
		if !ok {
			return
		}
		for _, fn := range fns {
			fn()
		}
	}
}

// call runs fn on the loop and waits for it. It returns early if the loop
// stops before fn runs.
func (b *Bridge) call(fn func()) {
	done := make(chan struct{})
	if !b.queue.post(func() {
		defer close(done)
		fn()
	}) {
		return
	}
	select {
	case <-done:
	case <-b.loopDone:
	}
}

// guard runs fn and returns a panic as an error.
func guard(fn func() error) error {
	var err error
	if r := panics.Try(func() { err = fn() }); r != nil {
		metrics.Panics.Inc()
		return r.AsError()
	}
	return err
}

func (b *Bridge) publish() {
	info := Info{
		State:      b.state,
		ResourceID: b.resourceID,
		Generation: b.generation,
		Discarded:  b.discarded,
	}
	if s := b.session; s != nil {
		info.TotalLength = s.totalLength
		info.BytesFetched = s.bytesFetched
		info.Document = s.document
	}
	b.snapshot.Store(&info)
}

func (b *Bridge) setState(s State) {
	if b.state != s {
		b.log.Debug("state change", "from", b.state, "to", s, "generation", b.generation)
	}
	b.state = s
	b.publish()
}

// live reports whether sess is still the session results should apply to.
func (b *Bridge) live(sess *session) bool {
	return b.mounted && b.session == sess && sess.generation == b.generation
}

func (b *Bridge) discard(kind string, generation uint64, attrs ...any) {
	b.discarded++
	metrics.StaleDiscarded.WithLabelValues(kind).Inc()
	b.log.Debug("discarding stale result",
		append([]any{"kind", kind, "result_generation", generation, "generation", b.generation}, attrs...)...)
	b.publish()
}

func (b *Bridge) reportError(err error) {
	if b.opts.OnError != nil {
		b.opts.OnError(err)
	}
}

func (b *Bridge) dropSession() {
	if b.session != nil {
		b.session.drop()
		b.session = nil
	}
}

func (b *Bridge) unmount() {
	b.mounted = false
	b.dropSession()
	b.state = Idle
	b.publish()
}

func (b *Bridge) changeResource(resourceID string) {
	if !b.mounted {
		return
	}

	b.generation++
	b.dropSession()
	b.resourceID = resourceID
	b.opts.Tracker.Reset(0)
	b.opts.Pages.OnResourceChanged()

	if strings.TrimSpace(resourceID) == "" {
		b.setState(Idle)
		return
	}
	if err := b.opts.ValidateResource(resourceID); err != nil {
		b.setState(Idle)
		b.log.Error("invalid resource", "resource", resourceID, "error", err)
		b.reportError(&DiscoveryError{ResourceID: resourceID, Err: err})
		return
	}

	b.setState(Discovering)

	generation := b.generation
	b.inflight.Go(func() {
		var size int64
		err := guard(func() (err error) {
			size, err = b.opts.Fetcher.HeadSize(b.ctx, resourceID)
			return err
		})
		b.queue.post(func() { b.discovered(generation, resourceID, size, err) })
	})
}

func (b *Bridge) discovered(generation uint64, resourceID string, size int64, err error) {
	if !b.mounted || generation != b.generation {
		b.discard(metrics.KindHead, generation, "resource", resourceID)
		return
	}

	if err == nil && size <= 0 {
		err = fmt.Errorf("content length is %d", size)
	}
	if err != nil {
		metrics.DiscoveryErrors.Inc()
		b.setState(Idle)
		b.log.Error("size discovery failed", "resource", resourceID, "error", err)
		b.reportError(&DiscoveryError{ResourceID: resourceID, Err: err})
		return
	}

	sess, err := newSession(b.ctx, resourceID, generation, size, b.opts.RangeCacheEntries)
	if err != nil {
		b.setState(Idle)
		b.reportError(&DiscoveryError{ResourceID: resourceID, Err: err})
		return
	}
	b.session = sess
	metrics.Sessions.Inc()

	b.opts.Tracker.Reset(size)
	b.setState(Transporting)
	b.log.Info("session started", "resource", resourceID, "total_length", size, "generation", generation)

	sess.transport = b.opts.Engine.OnRangeRequested(size, func(begin, end int64) {
		b.requestRange(sess, begin, end)
	})
	_, sess.unsubscribe = b.opts.Tracker.SubscribeSession(func(s progress.State) {
		sess.transport.ReportProgress(s.Loaded, s.Total)
	})

	b.inflight.Go(func() {
		var doc engine.Document
		err := guard(func() (err error) {
			doc, err = b.opts.Engine.ResolveDocument(sess.ctx, sess.transport)
			return err
		})
		b.queue.post(func() { b.resolved(sess, doc, err) })
	})
}

func (b *Bridge) resolved(sess *session, doc engine.Document, err error) {
	if !b.live(sess) {
		b.discard(metrics.KindResolve, sess.generation, "resource", sess.resourceID)
		return
	}

	if err != nil {
		b.log.Error("document resolution failed", "resource", sess.resourceID, "error", err)
		b.dropSession()
		b.setState(Idle)
		b.reportError(&ResolveError{ResourceID: sess.resourceID, Err: err})
		return
	}

	sess.document = doc
	b.setState(Resolved)
	b.opts.Pages.OnDocumentResolved(doc.NumPages())
	b.log.Info("document resolved", "resource", sess.resourceID, "pages", doc.NumPages())

	if b.opts.OnResolved != nil {
		b.opts.OnResolved(b.Info())
	}
}

// requestRange is the RequestFunc handed to the engine. It may run on any
// goroutine and never blocks.
func (b *Bridge) requestRange(sess *session, begin, end int64) {
	if sess.dropped.Load() || b.queue.closed() {
		return
	}

	if end > sess.totalLength {
		end = sess.totalLength
	}
	if begin < 0 || begin >= end {
		err := fmt.Errorf("invalid range [%d, %d) for length %d", begin, end, sess.totalLength)
		b.queue.post(func() { b.rangeFetched(sess, begin, end, nil, err, false) })
		return
	}

	if sess.cache != nil {
		if data, ok := sess.cache.Get(rangeKey{begin, end}); ok {
			b.queue.post(func() { b.rangeFetched(sess, begin, end, data, nil, true) })
			return
		}
	}

	b.inflight.Go(func() {
		var data []byte
		err := guard(func() (err error) {
			data, err = b.opts.Fetcher.FetchRange(b.ctx, sess.resourceID, begin, end)
			return err
		})
		b.queue.post(func() { b.rangeFetched(sess, begin, end, data, err, false) })
	})
}

func (b *Bridge) rangeFetched(sess *session, begin, end int64, data []byte, err error, cached bool) {
	if !b.live(sess) {
		b.discard(metrics.KindRange, sess.generation, "begin", begin, "end", end)
		return
	}

	if err != nil {
		metrics.RangeFetches.WithLabelValues(metrics.StatusFailure).Inc()
		b.log.Warn("range fetch failed", "resource", sess.resourceID, "begin", begin, "end", end, "error", err)
		sess.transport.FailRange(begin, end, &RangeFetchError{
			ResourceID: sess.resourceID,
			Begin:      begin,
			End:        end,
			Err:        err,
		})
		return
	}

	if cached {
		metrics.RangeCacheHits.Inc()
		b.log.Debug("range served from cache", "begin", begin, "end", end)
		sess.transport.SupplyRange(begin, data)
		return
	}

	n := int64(len(data))
	sess.bytesFetched += n
	if sess.cache != nil {
		sess.cache.Add(rangeKey{begin, end}, data)
	}
	metrics.RangeFetches.WithLabelValues(metrics.StatusSuccess).Inc()
	metrics.RangeBytes.Add(float64(n))
	b.publish()
	b.log.Debug("range fetched", "begin", begin, "end", end, "bytes", n, "fetched", sess.bytesFetched)

	// Progress first, then data.
	b.opts.Tracker.Notify(n, sess.totalLength)
	sess.transport.SupplyRange(begin, data)
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(resourceID string) error {
	u, err := url.Parse(resourceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResource, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidResource, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidResource)
	}
	return nil
}
