package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ligustah/rangeview/internal/bridge"
	"github.com/ligustah/rangeview/internal/view"
)

const viewHelp = `Commands:
  n        next page
  p        previous page
  g N      go to page N
  u URL    open another document
  q        quit`

func (c *cli) newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view [url]",
		Short: "Page through a remote document interactively",
		Long: `Open a remote document and page through it from the terminal.
Each page change renders the page and prints its dimensions.

` + viewHelp,
		Args: maxArgs(1),
		RunE: c.runView,
	}
}

// viewer is the interactive session behind the view command.
type viewer struct {
	c      *cli
	loader *loader
	host   *view.Host
	canvas *view.Canvas
}

func (c *cli) runView(cmd *cobra.Command, args []string) error {
	if err := c.resolveURL(args); err != nil {
		return err
	}
	stopMetrics := c.serveMetrics()
	defer stopMetrics()

	ctx := cmd.Context()
	l, err := newLoader(ctx, c.cfg, c.log, c.stderr)
	if err != nil {
		return err
	}
	defer l.Close()

	v := &viewer{
		c:      c,
		loader: l,
		host:   view.NewHost(c.log),
		canvas: view.NewCanvas(),
	}

	if err := v.open(ctx, c.cfg.URL); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, viewHelp)

	scanner := bufio.NewScanner(c.stdin)
	for {
		fmt.Fprint(c.stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.stdout)
			return scanner.Err()
		}
		quit, err := v.handle(ctx, scanner.Text())
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// handle executes one command line. Only context cancellation is fatal;
// everything else is reported and the session continues.
func (v *viewer) handle(ctx context.Context, line string) (bool, error) {
	pages := v.loader.Bridge().Pages()

	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return false, nil
	case "q", "quit":
		return true, nil
	case "n", "next":
		if !pages.Next() {
			fmt.Fprintln(v.c.stdout, "Already at the last page")
			return false, nil
		}
	case "p", "prev":
		if !pages.Prev() {
			fmt.Fprintln(v.c.stdout, "Already at the first page")
			return false, nil
		}
	case "g", "goto":
		n, err := strconv.Atoi(arg)
		state := pages.State()
		if err != nil || n < 1 || n > state.PageCount {
			fmt.Fprintf(v.c.stdout, "Page must be between 1 and %d\n", state.PageCount)
			return false, nil
		}
		pages.SetPage(n)
	case "u", "url":
		if err := bridge.ValidateURL(arg); err != nil {
			fmt.Fprintf(v.c.stdout, "Invalid URL: %v\n", err)
			return false, nil
		}
		if err := v.open(ctx, arg); err != nil {
			if ctx.Err() != nil {
				return false, err
			}
			fmt.Fprintf(v.c.stdout, "Cannot open %s: %v\n", arg, err)
		}
		return false, nil
	default:
		fmt.Fprintln(v.c.stdout, viewHelp)
		return false, nil
	}

	v.show(ctx)
	return false, ctx.Err()
}

// open loads url and shows its first page.
func (v *viewer) open(ctx context.Context, url string) error {
	info, err := v.loader.Load(ctx, url)
	if err != nil {
		return err
	}
	fmt.Fprintf(v.c.stdout, "Opened %s: %d pages\n", url, info.Document.NumPages())
	v.show(ctx)
	return nil
}

func (v *viewer) show(ctx context.Context) {
	b := v.loader.Bridge()
	n, err := v.host.RenderCurrent(ctx, b, v.canvas)
	if err != nil {
		var renderErr *view.RenderError
		if errors.As(err, &renderErr) {
			fmt.Fprintf(v.c.stdout, "Cannot render page %d: %v\n", renderErr.Page, renderErr.Err)
			return
		}
		fmt.Fprintf(v.c.stdout, "Nothing to show: %v\n", err)
		return
	}

	bounds := v.canvas.Image().Bounds()
	info := b.Info()
	fmt.Fprintf(v.c.stdout, "Page %d/%d (%dx%d), fetched %d of %d bytes\n",
		n, b.Pages().State().PageCount, bounds.Dx(), bounds.Dy(), info.BytesFetched, info.TotalLength)
}
