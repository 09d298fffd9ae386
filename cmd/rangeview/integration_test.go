//go:build integration

package main

import (
	"context"
	"testing"
	"time"

	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/rangeview/internal/snapshot"
	"github.com/ligustah/rangeview/internal/testutils"
)

func TestRenderToMinio(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	t.Log("Starting HTTP test server...")
	server := testutils.StartTestHTTPServer(t, []testutils.TestFile{
		{Name: "report.pdf", Data: testutils.BuildPDF("0 0 612 792", "0 0 842 595")},
	})

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "rangeview-test-bucket")

	code, _, stderr := runCLI(t, "", "render", server.FileURL("report.pdf"),
		"--bucket", minio.BucketURL,
		"--prefix", "renders/report",
		"--chunk-size", "512B",
	)
	if code != ExitSuccess {
		t.Fatalf("render exited %d: %s", code, stderr)
	}

	bucket, err := minio.OpenBucket(ctx)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bucket.Close()

	manifest, err := snapshot.ReadManifest(ctx, bucket, "renders/report")
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if manifest.PageCount != 2 || len(manifest.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %+v", manifest)
	}
	if p := manifest.Pages[1]; p.Width != 842 || p.Height != 595 {
		t.Errorf("expected page 2 at 842x595, got %dx%d", p.Width, p.Height)
	}

	attrs, err := bucket.Attributes(ctx, "renders/report/page-000001.png")
	if err != nil {
		t.Fatalf("Attributes: %v", err)
	}
	if attrs.ContentType != "image/png" {
		t.Errorf("expected image/png, got %s", attrs.ContentType)
	}

	t.Run("delete_and_rerender", func(t *testing.T) {
		if err := snapshot.Delete(ctx, bucket, "renders/report"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if exists, _ := bucket.Exists(ctx, "renders/report/manifest.json"); exists {
			t.Fatal("expected manifest to be deleted")
		}

		code, _, stderr := runCLI(t, "", "render", server.FileURL("report.pdf"),
			"--bucket", minio.BucketURL,
			"--prefix", "renders/report",
			"--pages", "2",
		)
		if code != ExitSuccess {
			t.Fatalf("render exited %d: %s", code, stderr)
		}
		if exists, _ := bucket.Exists(ctx, "renders/report/page-000001.png"); exists {
			t.Error("page 1 should not be rendered")
		}
	})
}
