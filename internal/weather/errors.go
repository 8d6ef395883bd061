package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLocation is returned when the location is blank after trimming.
	ErrInvalidLocation = errors.New("please add location")

	// ErrStoreUnavailable is wrapped by store adapters when the cache backend
	// cannot be reached.
	ErrStoreUnavailable = errors.New("cache store unavailable")

	// ErrUpstreamEmptyResult is returned when the provider answers a valid
	// request with no data.
	ErrUpstreamEmptyResult = errors.New("API returned an empty result")
)

// UpstreamError describes a failed provider call. StatusCode is zero for
// transport-level failures that never produced a response.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("failed to fetch from API: status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("failed to fetch from API: status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("failed to fetch from API: %v", e.Err)
	default:
		return "failed to fetch from API: " + e.Message
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ClientFault reports whether the provider rejected the request itself (4xx),
// typically because it could not resolve the location.
func (e *UpstreamError) ClientFault() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
