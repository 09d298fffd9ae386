package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Common errors.
var (
	ErrInvalidResponse = errors.New("http: response has no usable content length")
	ErrNotFound        = errors.New("http: resource not found")
	ErrForbidden       = errors.New("http: access forbidden")
	ErrUnauthorized    = errors.New("http: unauthorized")
	ErrServerError     = errors.New("http: server error")
)

// StatusError is returned for non-success statuses without a dedicated sentinel.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http: unexpected status code: %d", e.Code)
}

// DefaultAccept is the media type sent with every request.
const DefaultAccept = "application/pdf"

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// Timeout for individual requests. Zero means no timeout.
	Timeout time.Duration

	// Accept is the media type of the resource.
	// Default: application/pdf
	Accept string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Accept:              DefaultAccept,
	}
}

// Client issues the two requests the range transport needs: one HEAD to
// learn the resource size and one GET per byte range. Nothing is retried.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 100
	}
	if opts.Accept == "" {
		opts.Accept = DefaultAccept
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // Range offsets refer to the raw bytes
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// HeadSize performs a HEAD request and returns the declared Content-Length.
// A missing or zero length yields ErrInvalidResponse.
func (c *Client) HeadSize(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", c.opts.Accept)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("head request: %w", err)
	}
	resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return 0, err
	}

	size, err := contentLength(resp)
	if err != nil {
		return 0, err
	}
	return size, nil
}

// FetchRange downloads the half-open interval [begin, end) of the resource.
// On the wire this becomes the closed interval bytes=begin-(end-1).
// A server that ignores the Range header and answers 200 with the full body
// is not distinguished from a partial response.
func (c *Client) FetchRange(ctx context.Context, url string, begin, end int64) ([]byte, error) {
	if begin < 0 || end <= begin {
		return nil, fmt.Errorf("invalid range [%d, %d)", begin, end)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Range", FormatRange(begin, end))
	req.Header.Set("Accept", c.opts.Accept)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("range request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read range body: %w", err)
	}
	return data, nil
}

// FormatRange renders the half-open interval [begin, end) as a Range header value.
func FormatRange(begin, end int64) string {
	return fmt.Sprintf("bytes=%d-%d", begin, end-1)
}

// contentLength extracts a positive Content-Length from resp.
func contentLength(resp *http.Response) (int64, error) {
	size := resp.ContentLength
	if size <= 0 {
		// HEAD responses may leave ContentLength at -1 while still carrying the header.
		if v := resp.Header.Get("Content-Length"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrInvalidResponse, v)
			}
			size = n
		}
	}
	if size <= 0 {
		return 0, ErrInvalidResponse
	}
	return size, nil
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return fmt.Errorf("%w: %d", ErrServerError, code)
	default:
		return &StatusError{Code: code}
	}
}
