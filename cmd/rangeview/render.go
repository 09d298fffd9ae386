package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/ligustah/rangeview/internal/snapshot"
	"github.com/ligustah/rangeview/internal/view"
)

func (c *cli) newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [url]",
		Short: "Render pages of a remote document into a bucket",
		Long: `Render pages of a remote document and store them as PNG images in
object storage, next to a manifest.json listing the stored pages.

Pages already stored by an earlier run for the same document are skipped
unless --force is given.

The built-in engine lays out pages at their media box size but does not
draw page content: every stored image is a blank white page of the right
dimensions.

Bucket URLs use gocloud.dev syntax, e.g. file:///tmp/out, s3://bucket, gs://bucket.`,
		Args: maxArgs(1),
		RunE: c.runRender,
	}

	cmd.Flags().StringVar(&c.flags.Bucket, "bucket", "", "Destination bucket URL (required)")
	cmd.Flags().StringVar(&c.flags.Prefix, "prefix", "", "Object prefix inside the bucket")
	cmd.Flags().String("pages", "", "Pages to render, e.g. 1,3-5 (default all)")
	cmd.Flags().BoolVar(&c.flags.Force, "force", false, "Delete earlier snapshots under the prefix first")
	return cmd
}

func (c *cli) runRender(cmd *cobra.Command, args []string) error {
	if err := c.resolveURL(args); err != nil {
		return err
	}
	if c.cfg.Bucket == "" {
		return &usageError{fmt.Errorf("--bucket is required")}
	}
	pageSpec, _ := cmd.Flags().GetString("pages")

	stopMetrics := c.serveMetrics()
	defer stopMetrics()

	ctx := cmd.Context()

	bucket, err := blob.OpenBucket(ctx, c.cfg.Bucket)
	if err != nil {
		return &storageError{fmt.Errorf("open bucket: %w", err)}
	}
	defer bucket.Close()

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

	pages, err := parsePages(pageSpec, doc.NumPages())
	if err != nil {
		return &usageError{err}
	}

	if c.cfg.Force {
		if err := snapshot.Delete(ctx, bucket, c.cfg.Prefix); err != nil && !isNotFound(err) {
			return &storageError{err}
		}
	}

	store, err := snapshot.Open(ctx, bucket, c.cfg.Prefix, snapshot.Source{
		URL:         info.ResourceID,
		TotalLength: info.TotalLength,
		PageCount:   doc.NumPages(),
	})
	if err != nil {
		return &storageError{err}
	}

	host := view.NewHost(c.log)
	canvas := view.NewCanvas()
	rendered := 0

	for _, n := range pages {
		if store.Has(n) {
			c.log.Debug("page already stored", "page", n)
			continue
		}
		if err := host.RenderPage(ctx, doc, n, canvas); err != nil {
			return err
		}
		if _, err := store.PutPage(ctx, n, canvas.Image()); err != nil {
			return &storageError{err}
		}
		rendered++
		fmt.Fprintf(c.stderr, "\r[rangeview] Rendering: %d/%d pages", rendered, len(pages))
	}
	if rendered > 0 {
		fmt.Fprintln(c.stderr)
	}

	manifest, err := store.Commit(ctx)
	if err != nil {
		return &storageError{err}
	}

	fmt.Fprintf(c.stderr, "[rangeview] Stored %d pages (%d new) in %s\n", len(manifest.Pages), rendered, c.cfg.Bucket)
	return nil
}

// parsePages parses a page list such as "1,3-5". An empty list selects
// every page. The result is sorted and free of duplicates.
func parsePages(spec string, count int) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		pages := make([]int, count)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")

		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		last := first
		if isRange {
			last, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
		}
		if first < 1 || last > count || first > last {
			return nil, fmt.Errorf("page range %q outside [1, %d]", part, count)
		}
		for n := first; n <= last; n++ {
			seen[n] = true
		}
	}

	pages := make([]int, 0, len(seen))
	for n := range seen {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages, nil
}

func isNotFound(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
