package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ligustah/rangeview/internal/bridge"
	"github.com/ligustah/rangeview/internal/config"
	"github.com/ligustah/rangeview/internal/progress"
	"github.com/ligustah/rangeview/internal/view"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitSourceNotAccess = 3
	ExitDocumentError   = 4
	ExitStorageError    = 5
	ExitRenderError     = 6
)

// usageError marks invalid flags, arguments or configuration.
type usageError struct {
	err error
}

func (e *usageError) Error() string  { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// storageError marks failures of the snapshot bucket.
type storageError struct {
	err error
}

func (e *storageError) Error() string  { return e.err.Error() }
func (e *storageError) Unwrap() error { return e.err }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// cli holds what every command shares.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configFile string
	flags      config.Config
	chunkSize  string

	cfg config.Config
	log *slog.Logger
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	root := c.newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr     *usageError
		storageErr   *storageError
		discoveryErr *bridge.DiscoveryError
		resolveErr   *bridge.ResolveError
		renderErr    *view.RenderError
	)
	switch {
	case errors.As(err, &usageErr):
		return ExitInvalidArgs
	case errors.As(err, &discoveryErr):
		return ExitSourceNotAccess
	case errors.As(err, &resolveErr):
		return ExitDocumentError
	case errors.As(err, &storageErr):
		return ExitStorageError
	case errors.As(err, &renderErr):
		return ExitRenderError
	default:
		return ExitGeneralError
	}
}

func (c *cli) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rangeview",
		Short:         "View remote PDF documents without downloading them first",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "YAML config file")
	pf.StringVar(&c.flags.Accept, "accept", "", "Accept header sent with every request (default application/pdf)")
	pf.DurationVar(&c.flags.Timeout, "timeout", 0, "Per-request timeout (0 = none)")
	pf.IntVar(&c.flags.MaxIdleConnsPerHost, "max-idle-conns", 0, "Maximum idle connections per host")
	pf.StringVar(&c.chunkSize, "chunk-size", "", "Range request size, e.g. 64KiB")
	pf.IntVar(&c.flags.RangeCacheEntries, "range-cache-entries", 0, "Cache this many fetched ranges per document (0 = off)")
	pf.StringVar(&c.flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&c.flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	pf.BoolVar(&c.flags.Progress, "progress", false, "Print download progress to stderr")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	root.AddCommand(c.newInfoCmd(), c.newRenderCmd(), c.newViewCmd())
	return root
}

// setup resolves the configuration: defaults, then file, then environment,
// then flags.
func (c *cli) setup() error {
	cfg := config.Default()
	if c.configFile != "" {
		loaded, err := config.LoadFromFile(c.configFile)
		if err != nil {
			return &usageError{err}
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return &usageError{err}
	}

	if c.chunkSize != "" {
		size, err := progress.ParseBytes(c.chunkSize)
		if err != nil {
			return &usageError{fmt.Errorf("parse --chunk-size: %w", err)}
		}
		c.flags.ChunkSize = size
	}
	c.cfg = cfg.Merge(c.flags)

	level, err := c.cfg.SlogLevel()
	if err != nil {
		return &usageError{err}
	}
	c.log = slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// maxArgs is cobra.MaximumNArgs reporting a usage error.
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

// resolveURL takes the document URL from the first argument or the config
// and validates the result.
func (c *cli) resolveURL(args []string) error {
	if len(args) > 0 {
		c.cfg.URL = args[0]
	}
	if err := c.cfg.Validate(); err != nil {
		return &usageError{err}
	}
	if err := bridge.ValidateURL(c.cfg.URL); err != nil {
		return &usageError{err}
	}
	return nil
}

// serveMetrics starts the metrics endpoint if configured. The returned
// function shuts it down.
func (c *cli) serveMetrics() func() {
	if c.cfg.MetricsAddr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              c.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Error("metrics server failed", "addr", c.cfg.MetricsAddr, "error", err)
		}
	}()
	c.log.Info("serving metrics", "addr", c.cfg.MetricsAddr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
