package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetchFailed marks transport failures, timeouts and non-2xx responses.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrExtractionFailed marks a recognized product page missing a required field.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrNotFound is returned by history readers for unknown product URLs.
	ErrNotFound = errors.New("product not found")
)

// FetchError describes why a page could not be fetched.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap lets errors.Is match both the cause and ErrFetchFailed.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}
