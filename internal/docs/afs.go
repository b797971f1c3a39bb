package docs

import (
	"context"
	"strings"

	"github.com/viant/afs"
)

// AFSProvider fetches documents through the abstract file storage layer, so
// submissions may reference local paths, S3, GCS, or HTTP URLs uniformly.
type AFSProvider struct {
	fs      afs.Service
	baseURL string
}

// NewAFSProvider creates a provider. baseURL, when set, prefixes relative
// document references.
func NewAFSProvider(baseURL string) *AFSProvider {
	return &AFSProvider{fs: afs.New(), baseURL: strings.TrimRight(baseURL, "/")}
}

// Fetch implements Provider. Failures come back classified so callers can
// store a precise diagnostic.
func (p *AFSProvider) Fetch(ctx context.Context, url string) (string, error) {
	resolved := p.resolve(url)

	data, err := p.fs.DownloadWithURL(ctx, resolved)
	if err != nil {
		return "", &FetchError{URL: resolved, Kind: classifyFetchError(err), Err: err}
	}
	return string(data), nil
}

func (p *AFSProvider) resolve(url string) string {
	if p.baseURL == "" || strings.Contains(url, "://") || strings.HasPrefix(url, "/") {
		return url
	}
	return p.baseURL + "/" + url
}

// classifyFetchError maps storage errors onto fetch kinds by message
// inspection; the afs layer does not expose typed errors across schemes.
func classifyFetchError(err error) FetchErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not exist") || strings.Contains(msg, "not found") ||
		strings.Contains(msg, "no such file") || strings.Contains(msg, "404"):
		return FetchNotFound
	case strings.Contains(msg, "denied") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "401") ||
		strings.Contains(msg, "403"):
		return FetchAccessDenied
	default:
		return FetchUnavailable
	}
}
