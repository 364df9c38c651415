// Package fetch retrieves fragment markup from an HTTP origin or a filesystem.
//
// A fetch is a single attempt. It is never retried and it is detached from
// the caller's cancellation: once started it runs to completion or failure.
package fetch

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"
)

// Fetcher retrieves the markup of one fragment.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (string, error)
}

// FetchError is the single failure condition of a fetch. Status is the HTTP
// status of a non-success response, or 0 when no response was received.
type FetchError struct {
	Path   string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s failed: status %d", e.Path, e.Status)
	}
	return fmt.Sprintf("fetch %s failed: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Options tunes fetchers built by New
type Options struct {
	// Timeout bounds one HTTP fetch. Zero means no timeout.
	Timeout        time.Duration
	UserAgent      string
	MaxContentSize int64
}

const (
	defaultUserAgent      = "landing-fragment-fetcher/1.0"
	defaultMaxContentSize = 2 * 1024 * 1024

	// SourceEmbedded selects the fragments compiled into the binary
	SourceEmbedded = "embedded"
)

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.MaxContentSize <= 0 {
		o.MaxContentSize = defaultMaxContentSize
	}
	return o
}

// New picks a fetcher for source: an http(s) base URL, "embedded", or a
// directory on disk.
func New(source string, embedded fs.FS, opts Options) (Fetcher, error) {
	opts = opts.withDefaults()

	switch {
	case source == "" || source == SourceEmbedded:
		if embedded == nil {
			return nil, fmt.Errorf("no embedded fragments available")
		}
		return NewFSFetcher(embedded), nil
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		base, err := url.Parse(source)
		if err != nil {
			return nil, fmt.Errorf("invalid fragment source %q: %w", source, err)
		}
		return NewHTTPFetcher(base, opts), nil
	default:
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("fragment source %q: %w", source, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("fragment source %q is not a directory", source)
		}
		return NewFSFetcher(os.DirFS(source)), nil
	}
}
