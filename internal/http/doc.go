// Package http provides the range fetcher used by the transport bridge.
//
// This package handles:
//   - HEAD requests to discover the resource size
//   - Range requests for arbitrary byte intervals
//   - Status code classification into sentinel errors
//
// Requests are never retried; each call issues exactly one request.
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    MaxIdleConnsPerHost: 100,
//	    Accept:              "application/pdf",
//	})
//
//	// Discover the size
//	size, err := client.HeadSize(ctx, url)
//
//	// Fetch [begin, end)
//	data, err := client.FetchRange(ctx, url, begin, end)
package http
