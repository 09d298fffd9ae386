package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/ligustah/rangeview/internal/bridge"
	"github.com/ligustah/rangeview/internal/config"
	rvhttp "github.com/ligustah/rangeview/internal/http"
	"github.com/ligustah/rangeview/internal/pdfengine"
	"github.com/ligustah/rangeview/internal/progress"
)

// loader wires the HTTP client, the pdf engine and the bridge, and turns
// the bridge callbacks into a blocking Load.
type loader struct {
	cfg    config.Config
	log    *slog.Logger
	stderr io.Writer

	bridge *bridge.Bridge
	events chan loadEvent
}

type loadEvent struct {
	resourceID string
	info       bridge.Info
	err        error
}

func newLoader(ctx context.Context, cfg config.Config, log *slog.Logger, stderr io.Writer) (*loader, error) {
	l := &loader{
		cfg:    cfg,
		log:    log,
		stderr: stderr,
		events: make(chan loadEvent, 4),
	}

	client := rvhttp.NewClient(rvhttp.Options{
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		Timeout:             cfg.Timeout,
		Accept:              cfg.Accept,
	})
	eng := pdfengine.New(pdfengine.Options{
		ChunkSize: cfg.ChunkSize,
		Logger:    log,
	})

	b, err := bridge.New(ctx, bridge.Options{
		Fetcher:           client,
		Engine:            eng,
		RangeCacheEntries: cfg.RangeCacheEntries,
		Logger:            log,
		OnError:           l.onError,
		OnResolved:        l.onResolved,
	})
	if err != nil {
		return nil, err
	}
	l.bridge = b
	return l, nil
}

// onError and onResolved run on the bridge loop and must not block.
func (l *loader) onError(err error) {
	var (
		discoveryErr *bridge.DiscoveryError
		resolveErr   *bridge.ResolveError
		resourceID   string
	)
	switch {
	case errors.As(err, &discoveryErr):
		resourceID = discoveryErr.ResourceID
	case errors.As(err, &resolveErr):
		resourceID = resolveErr.ResourceID
	}
	l.send(loadEvent{resourceID: resourceID, err: err})
}

func (l *loader) onResolved(info bridge.Info) {
	l.send(loadEvent{resourceID: info.ResourceID, info: info})
}

func (l *loader) send(ev loadEvent) {
	select {
	case l.events <- ev:
	default:
		l.log.Warn("dropping load event", "resource", ev.resourceID)
	}
}

// Load switches to url and blocks until its document resolves or fails.
func (l *loader) Load(ctx context.Context, url string) (bridge.Info, error) {
	l.drain()

	var reporter *progress.Reporter
	if l.cfg.Progress {
		reporter = progress.NewReporter(l.bridge.Tracker(), progress.Options{
			Output:    l.stderr,
			SourceURL: url,
		})
		reporter.Start()
		defer reporter.Stop()
	}

	l.bridge.SetResource(url)

	for {
		select {
		case ev := <-l.events:
			if ev.resourceID != url {
				continue
			}
			return ev.info, ev.err
		case <-ctx.Done():
			return bridge.Info{}, ctx.Err()
		}
	}
}

func (l *loader) drain() {
	for {
		select {
		case <-l.events:
		default:
			return
		}
	}
}

// Bridge returns the underlying bridge.
func (l *loader) Bridge() *bridge.Bridge {
	return l.bridge
}

// Close stops the bridge and waits for in-flight requests.
func (l *loader) Close() {
	l.bridge.Close()
	l.bridge.Wait()
}
