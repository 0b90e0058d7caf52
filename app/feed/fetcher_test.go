package feed

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("User-Agent") != "test-agent" {
				t.Errorf("Expected user agent 'test-agent', got '%s'", r.Header.Get("User-Agent"))
			}
			w.Write([]byte("feed body"))
		case "/created":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("still fine"))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/large":
			w.Write([]byte(strings.Repeat("x", 64)))
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(&http.Client{Timeout: 5 * time.Second}, "test-agent", 32)
	ctx := context.Background()

	data, err := fetcher.Fetch(ctx, server.URL+"/ok")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if string(data) != "feed body" {
		t.Errorf("Expected 'feed body', got '%s'", data)
	}

	if _, err := fetcher.Fetch(ctx, server.URL+"/created"); err != nil {
		t.Errorf("Expected 2xx status to succeed, got: %v", err)
	}

	_, err = fetcher.Fetch(ctx, server.URL+"/broken")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected *FetchError, got: %v", err)
	}
	if fetchErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", fetchErr.StatusCode)
	}
	if fetchErr.URL != server.URL+"/broken" {
		t.Errorf("Expected URL in error, got '%s'", fetchErr.URL)
	}

	if _, err := fetcher.Fetch(ctx, server.URL+"/large"); err == nil {
		t.Error("Expected error for oversized body")
	}
}

func TestFetcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	fetcher := NewFetcher(&http.Client{Timeout: 50 * time.Millisecond}, "", 0)

	_, err := fetcher.Fetch(context.Background(), server.URL)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected *FetchError, got: %v", err)
	}
	if fetchErr.StatusCode != 0 {
		t.Errorf("Expected no status for transport failure, got %d", fetchErr.StatusCode)
	}
}

func TestFetcher_FetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latin1":
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			w.Write([]byte("<p>caf\xe9</p>"))
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("{}"))
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, "", 0)

	r, err := fetcher.FetchPage(context.Background(), server.URL+"/latin1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	data, _ := io.ReadAll(r)
	if string(data) != "<p>café</p>" {
		t.Errorf("Expected page decoded to UTF-8, got %q", data)
	}

	if _, err := fetcher.FetchPage(context.Background(), server.URL+"/json"); err == nil {
		t.Error("Expected error for non-HTML content type")
	}
}
