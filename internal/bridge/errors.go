package bridge

import (
	"errors"
	"fmt"
)

// ErrInvalidResource is wrapped by DiscoveryError when the resource
// identifier cannot be fetched at all.
var ErrInvalidResource = errors.New("bridge: invalid resource identifier")

// DiscoveryError is reported when the size of a resource cannot be
// determined. No session is created.
type DiscoveryError struct {
	ResourceID string
	Err        error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("cannot determine resource size of %s: %v", e.ResourceID, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// RangeFetchError is delivered to the engine when a single range request
// fails. The session stays alive.
type RangeFetchError struct {
	ResourceID string
	Begin      int64
	End        int64
	Err        error
}

func (e *RangeFetchError) Error() string {
	return fmt.Sprintf("fetch range [%d, %d) of %s: %v", e.Begin, e.End, e.ResourceID, e.Err)
}

func (e *RangeFetchError) Unwrap() error {
	return e.Err
}

// ResolveError is reported when the engine fails to resolve the document.
type ResolveError struct {
	ResourceID string
	Err        error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve document %s: %v", e.ResourceID, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
