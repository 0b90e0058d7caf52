package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = int64(10 * 1024 * 1024)
)

// Fetcher performs single GET requests with a per-request timeout. It never
// retries: a failed feed is absent from the current run.
type Fetcher struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
}

func NewFetcher(httpClient *http.Client, userAgent string, maxBodyBytes int64) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Fetcher{
		httpClient:   httpClient,
		userAgent:    userAgent,
		maxBodyBytes: maxBodyBytes,
	}
}

// Fetch returns the raw body of url. Any transport failure or non-2xx status
// yields a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, _, err := f.get(ctx, url)
	return data, err
}

// FetchPage fetches an HTML page and returns its body decoded to UTF-8.
func (f *Fetcher) FetchPage(ctx context.Context, url string) (io.Reader, error) {
	data, contentType, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("content type is not HTML: %s", contentType)}
	}

	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to decode page: %w", err)}
	}
	return r, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, "", &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(data)) > f.maxBodyBytes {
		return nil, "", &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("response body exceeds %d bytes", f.maxBodyBytes)}
	}

	return data, resp.Header.Get("Content-Type"), nil
}
