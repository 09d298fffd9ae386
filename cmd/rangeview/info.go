package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligustah/rangeview/internal/progress"
)

func (c *cli) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [url]",
		Short: "Resolve a remote document and print its page layout",
		Long: `Resolve a remote document through range requests and print its size,
page count and page dimensions, along with how many bytes were fetched.`,
		Args: maxArgs(1),
		RunE: c.runInfo,
	}
}

func (c *cli) runInfo(cmd *cobra.Command, args []string) error {
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

	info, err := l.Load(ctx, c.cfg.URL)
	if err != nil {
		return err
	}

	doc := info.Document
	fmt.Fprintf(c.stdout, "URL:     %s\n", info.ResourceID)
	fmt.Fprintf(c.stdout, "Size:    %s (%d bytes)\n", progress.FormatBytes(info.TotalLength), info.TotalLength)
	fmt.Fprintf(c.stdout, "Fetched: %s\n", progress.FormatState(progress.State{
		Loaded: info.BytesFetched,
		Total:  info.TotalLength,
	}))
	fmt.Fprintf(c.stdout, "Pages:   %d\n", doc.NumPages())

	for n := 1; n <= doc.NumPages(); n++ {
		page, err := doc.GetPage(ctx, n)
		if err != nil {
			return fmt.Errorf("page %d: %w", n, err)
		}
		w, h := page.Size()
		fmt.Fprintf(c.stdout, "  %4d  %dx%d\n", n, w, h)
	}
	return nil
}
