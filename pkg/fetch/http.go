package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPFetcher fetches fragments relative to a base URL.
type HTTPFetcher struct {
	base           *url.URL
	client         *http.Client
	userAgent      string
	maxContentSize int64
}

// NewHTTPFetcher creates a fetcher resolving paths against base
func NewHTTPFetcher(base *url.URL, opts Options) *HTTPFetcher {
	opts = opts.withDefaults()

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	// "https://cdn/site" must resolve "modules/x.html" under site/, not beside it.
	b := *base
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}

	return &HTTPFetcher{
		base: &b,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		userAgent:      opts.UserAgent,
		maxContentSize: opts.MaxContentSize,
	}
}

// NewHTTPFetcherWithClient uses a caller-supplied client (tests, custom transports)
func NewHTTPFetcherWithClient(base *url.URL, client *http.Client, opts Options) *HTTPFetcher {
	f := NewHTTPFetcher(base, opts)
	f.client = client
	return f
}

// Fetch retrieves one fragment. Any non-2xx status is a FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, path string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", &FetchError{Path: path, Err: fmt.Errorf("invalid path: %w", err)}
	}
	target := f.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, target.String(), nil)
	if err != nil {
		return "", &FetchError{Path: path, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{
			Path:   path,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentSize+1))
	if err != nil {
		return "", &FetchError{Path: path, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.maxContentSize {
		return "", &FetchError{Path: path, Err: fmt.Errorf("content too large (exceeds %d bytes)", f.maxContentSize)}
	}

	return string(body), nil
}
