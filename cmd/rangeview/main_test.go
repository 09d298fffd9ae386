package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ligustah/rangeview/internal/bridge"
	"github.com/ligustah/rangeview/internal/snapshot"
	"github.com/ligustah/rangeview/internal/testutils"
	"github.com/ligustah/rangeview/internal/view"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func startServer(t *testing.T) *testutils.TestServer {
	t.Helper()
	return testutils.StartTestHTTPServer(t, []testutils.TestFile{
		{Name: "doc.pdf", Data: testutils.BuildPDF("0 0 612 792", "0 0 300 200", "0 0 100.2 50")},
		{Name: "other.pdf", Data: testutils.BuildPDF("0 0 10 20")},
		{Name: "nolength.pdf", Data: testutils.BuildPDF("0 0 10 20"), OmitLength: true},
		{Name: "broken.pdf", Data: []byte("this is not a pdf document at all")},
	})
}

func TestInfo(t *testing.T) {
	server := startServer(t)

	code, stdout, stderr := runCLI(t, "", "info", server.FileURL("doc.pdf"), "--chunk-size", "256B")
	if code != ExitSuccess {
		t.Fatalf("info exited %d: %s", code, stderr)
	}

	for _, want := range []string{"Pages:   3", "612x792", "300x200", "101x50"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}

	for _, r := range server.Ranges() {
		if !strings.HasPrefix(r, "bytes=") {
			t.Errorf("unexpected Range header %q", r)
		}
	}
	if len(server.Ranges()) == 0 {
		t.Error("expected range requests")
	}
}

func TestInfoExitCodes(t *testing.T) {
	server := startServer(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing length", []string{"info", server.FileURL("nolength.pdf")}, ExitSourceNotAccess},
		{"not found", []string{"info", server.FileURL("missing.pdf")}, ExitSourceNotAccess},
		{"not a pdf", []string{"info", server.FileURL("broken.pdf")}, ExitDocumentError},
		{"no url", []string{"info"}, ExitInvalidArgs},
		{"bad scheme", []string{"info", "ftp://example.com/doc.pdf"}, ExitInvalidArgs},
		{"too many args", []string{"info", "a", "b"}, ExitInvalidArgs},
		{"bad flag", []string{"info", "--no-such-flag"}, ExitInvalidArgs},
		{"bad chunk size", []string{"info", server.FileURL("doc.pdf"), "--chunk-size", "huge"}, ExitInvalidArgs},
		{"bad log level", []string{"info", server.FileURL("doc.pdf"), "--log-level", "loud"}, ExitInvalidArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, "", tt.args...)
			if code != tt.want {
				t.Errorf("expected exit code %d, got %d: %s", tt.want, code, stderr)
			}
		})
	}
}

func TestInfoFromConfigFile(t *testing.T) {
	server := startServer(t)

	configPath := filepath.Join(t.TempDir(), "rangeview.yaml")
	content := fmt.Sprintf("url: %s\nchunk_size: 1KiB\nrange_cache_entries: 16\n", server.FileURL("other.pdf"))
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, stdout, stderr := runCLI(t, "", "info", "--config", configPath)
	if code != ExitSuccess {
		t.Fatalf("info exited %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Pages:   1") {
		t.Errorf("expected one page in output:\n%s", stdout)
	}
}

func TestRender(t *testing.T) {
	server := startServer(t)
	dir := t.TempDir()
	bucketURL := "file://" + filepath.ToSlash(dir)

	code, _, stderr := runCLI(t, "", "render", server.FileURL("doc.pdf"),
		"--bucket", bucketURL,
		"--prefix", "doc",
		"--pages", "1,3",
	)
	if code != ExitSuccess {
		t.Fatalf("render exited %d: %s", code, stderr)
	}

	for _, name := range []string{"page-000001.png", "page-000003.png", "manifest.json"} {
		if _, err := os.Stat(filepath.Join(dir, "doc", name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "doc", "page-000002.png")); err == nil {
		t.Error("page 2 should not be rendered")
	}

	// A second run keeps the stored pages and adds the rest.
	code, _, stderr = runCLI(t, "", "render", server.FileURL("doc.pdf"),
		"--bucket", bucketURL,
		"--prefix", "doc",
	)
	if code != ExitSuccess {
		t.Fatalf("render exited %d: %s", code, stderr)
	}
	if !strings.Contains(stderr, "Stored 3 pages (1 new)") {
		t.Errorf("expected resume summary, got: %s", stderr)
	}

	// Another document under the same prefix needs --force.
	code, _, _ = runCLI(t, "", "render", server.FileURL("other.pdf"), "--bucket", bucketURL, "--prefix", "doc")
	if code != ExitStorageError {
		t.Errorf("expected exit code %d, got %d", ExitStorageError, code)
	}
	code, _, stderr = runCLI(t, "", "render", server.FileURL("other.pdf"), "--bucket", bucketURL, "--prefix", "doc", "--force")
	if code != ExitSuccess {
		t.Fatalf("render --force exited %d: %s", code, stderr)
	}
}

func TestRenderRequiresBucket(t *testing.T) {
	server := startServer(t)
	code, _, _ := runCLI(t, "", "render", server.FileURL("doc.pdf"))
	if code != ExitInvalidArgs {
		t.Errorf("expected exit code %d, got %d", ExitInvalidArgs, code)
	}
}

func TestRenderHelpMentionsBlankPages(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "render", "--help")
	if code != ExitSuccess {
		t.Fatalf("expected exit code %d, got %d", ExitSuccess, code)
	}
	if !strings.Contains(stdout, "blank white page") {
		t.Errorf("expected help to describe blank output, got %q", stdout)
	}
}

func TestView(t *testing.T) {
	server := startServer(t)

	input := strings.Join([]string{
		"n",
		"n",
		"n",
		"g 1",
		"p",
		"g 9",
		"u " + server.FileURL("other.pdf"),
		"q",
	}, "\n")

	code, stdout, stderr := runCLI(t, input, "view", server.FileURL("doc.pdf"))
	if code != ExitSuccess {
		t.Fatalf("view exited %d: %s", code, stderr)
	}

	for _, want := range []string{
		"Opened " + server.FileURL("doc.pdf") + ": 3 pages",
		"Page 1/3 (612x792)",
		"Page 2/3 (300x200)",
		"Page 3/3 (101x50)",
		"Already at the last page",
		"Already at the first page",
		"Page must be between 1 and 3",
		"Opened " + server.FileURL("other.pdf") + ": 1 pages",
		"Page 1/1 (10x20)",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestViewEndOfInput(t *testing.T) {
	server := startServer(t)
	code, _, stderr := runCLI(t, "n\n", "view", server.FileURL("doc.pdf"))
	if code != ExitSuccess {
		t.Fatalf("view exited %d: %s", code, stderr)
	}
}

func TestParsePages(t *testing.T) {
	tests := []struct {
		spec    string
		count   int
		want    []int
		wantErr bool
	}{
		{"", 3, []int{1, 2, 3}, false},
		{"2", 3, []int{2}, false},
		{"3,1", 3, []int{1, 3}, false},
		{"1-3,2", 5, []int{1, 2, 3}, false},
		{" 4 - 5 ", 5, []int{4, 5}, false},
		{"0", 3, nil, true},
		{"4", 3, nil, true},
		{"3-1", 3, nil, true},
		{"a", 3, nil, true},
		{"1-b", 3, nil, true},
	}

	for _, tt := range tests {
		got, err := parsePages(tt.spec, tt.count)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePages(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parsePages(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"general", errors.New("boom"), ExitGeneralError},
		{"usage", &usageError{errors.New("bad flag")}, ExitInvalidArgs},
		{"discovery", &bridge.DiscoveryError{Err: errors.New("404")}, ExitSourceNotAccess},
		{"resolve", fmt.Errorf("wrapped: %w", &bridge.ResolveError{Err: errors.New("bad xref")}), ExitDocumentError},
		{"storage", &storageError{snapshot.ErrSourceChanged}, ExitStorageError},
		{"render", &view.RenderError{Page: 2, Err: errors.New("boom")}, ExitRenderError},
	}

	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("%s: exitCode() = %d, want %d", tt.name, got, tt.want)
		}
	}
}
