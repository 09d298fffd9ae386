package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// SourceURL is the URL being loaded (for display).
	SourceURL string
}

// Reporter prints the state of a Tracker in human-readable form.
type Reporter struct {
	opts    Options
	tracker *Tracker

	mu         sync.Mutex
	latest     State
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	cancel     func()
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
}

// NewReporter creates a new progress reporter for tracker.
func NewReporter(tracker *Tracker, opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:    opts,
		tracker: tracker,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start subscribes to the tracker and begins outputting progress information.
func (r *Reporter) Start() {
	r.startTime = time.Now()
	r.lastUpdate = r.startTime

	state, cancel := r.tracker.Subscribe(r.observe)
	r.mu.Lock()
	r.latest = state
	r.lastBytes = state.Loaded
	r.cancel = cancel
	r.started = true
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[rangeview] Loading: %s\n", r.opts.SourceURL)

	go r.updateLoop()
}

// Stop stops the reporter and prints a final summary.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	cancel := r.cancel
	r.mu.Unlock()

	if !started {
		return
	}
	cancel()
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reporter) observe(s State) {
	r.mu.Lock()
	if s.Session != r.latest.Session {
		r.lastBytes = s.Loaded
	}
	r.latest = s
	r.mu.Unlock()
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()

	r.mu.Lock()
	state := r.latest
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(state.Loaded-r.lastBytes) / elapsed
	if speed < 0 {
		speed = 0
	}
	r.lastUpdate = now
	r.lastBytes = state.Loaded
	r.mu.Unlock()

	eta := "-"
	if remaining := state.Total - state.Loaded; remaining > 0 && speed > 0 {
		eta = formatDuration(time.Duration(float64(remaining) / speed * float64(time.Second)))
	}

	fmt.Fprintf(r.opts.Output, "\r[rangeview] %s | Ranges: %d | Speed: %s/s | ETA: %s    ",
		FormatState(state),
		state.Fetches,
		FormatBytes(int64(speed)),
		eta,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	r.mu.Lock()
	state := r.latest
	r.mu.Unlock()

	duration := time.Since(r.startTime)
	fmt.Fprintf(r.opts.Output, "\r[rangeview] %s | Ranges: %d    \n", FormatState(state), state.Fetches)
	fmt.Fprintf(r.opts.Output, "[rangeview] Total time: %s\n", formatDuration(duration))
}

// FormatState renders a snapshot as "Downloaded bytes : loaded / total (pct %)".
func FormatState(s State) string {
	return fmt.Sprintf("Downloaded bytes : %d / %d (%.2f %%)", s.Loaded, s.Total, s.Percent())
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes formats bytes using IEC units (KiB, MiB, ...).
func FormatBytes(b int64) string {
	if b < 0 {
		return "-" + humanize.IBytes(uint64(-b))
	}
	return humanize.IBytes(uint64(b))
}

// ParseBytes parses a human-readable byte string (e.g., "64KiB", "1MB").
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}
	return int64(n), nil
}
