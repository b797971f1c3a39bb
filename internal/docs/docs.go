// Package docs retrieves student submission documents from the external
// file store. Retrieval failures are terminal for the grading attempt that
// hit them; classification into not-found versus access-denied feeds the
// diagnostic message stored on the failed unit.
package docs

import (
	"context"
	"errors"
	"fmt"
)

// FetchErrorKind classifies document retrieval failures.
type FetchErrorKind string

const (
	// FetchNotFound indicates the document does not exist at the URL.
	FetchNotFound FetchErrorKind = "not_found"

	// FetchAccessDenied indicates the store rejected the credentials.
	FetchAccessDenied FetchErrorKind = "access_denied"

	// FetchUnavailable covers transport and store failures.
	FetchUnavailable FetchErrorKind = "unavailable"
)

// ErrFetchFailed is the sentinel all FetchErrors unwrap to.
var ErrFetchFailed = errors.New("document fetch failed")

// FetchError is a classified document retrieval failure.
type FetchError struct {
	URL  string
	Kind FetchErrorKind
	Err  error
}

// Error formats the classified fetch failure.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
}

// Unwrap makes FetchError match errors.Is(err, ErrFetchFailed).
func (e *FetchError) Unwrap() error { return ErrFetchFailed }

// Provider retrieves submission documents by URL.
type Provider interface {
	Fetch(ctx context.Context, url string) (string, error)
}
