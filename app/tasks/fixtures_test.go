package tasks

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/lysyi3m/rss-epub/app/database"
	"github.com/lysyi3m/rss-epub/app/dedup"
	"github.com/lysyi3m/rss-epub/app/epub"
	"github.com/lysyi3m/rss-epub/app/feed"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>RSS Fixture</title>
    <link>https://example.com/</link>
    <description>Fixture</description>
    <item>
      <guid>rss-1</guid>
      <title>Dated</title>
      <link>https://example.com/1</link>
      <description><![CDATA[<p>Hello</p><img src="/img.png"/><script>alert(1)</script>]]></description>
      <pubDate>Mon, 04 Mar 2024 10:00:00 GMT</pubDate>
    </item>
    <item>
      <guid>rss-2</guid>
      <title>Undated</title>
      <link>https://example.com/2</link>
      <description>No pubDate here</description>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Fixture</title>
  <id>urn:fixture</id>
  <updated>2024-03-05T10:00:00Z</updated>
  <entry>
    <id>atom-1</id>
    <title>First</title>
    <link href="https://example.org/a1"/>
    <updated>2024-03-05T10:00:00Z</updated>
    <summary>One</summary>
  </entry>
  <entry>
    <id>atom-2</id>
    <title>Second</title>
    <link href="https://example.org/a2"/>
    <updated>2024-03-04T10:00:00Z</updated>
    <content type="html">&lt;p&gt;Two&lt;/p&gt;</content>
  </entry>
</feed>`

func rssWithItems(ids ...string) string {
	items := ""
	for i, id := range ids {
		items += fmt.Sprintf(`<item><guid>%s</guid><title>Item %s</title><link>https://example.net/%s</link><description>Body %s</description><pubDate>Mon, 0%d Mar 2024 10:00:00 GMT</pubDate></item>`, id, id, id, id, i+1)
	}
	return `<?xml version="1.0"?><rss version="2.0"><channel><title>Generated</title><link>https://example.net/</link><description>d</description>` + items + `</channel></rss>`
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

type testServer struct {
	*httptest.Server
	imageHits atomic.Int32
}

// newTestServer serves the fixtures under fixed paths plus any extra routes.
func newTestServer(t *testing.T, extra map[string]string) *testServer {
	t.Helper()
	imageData := pngBytes(t)

	ts := &testServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFixture)
	})
	mux.HandleFunc("/atom", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomFixture)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		ts.imageHits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(imageData)
	})
	for path, body := range extra {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		})
	}

	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) feedConfig(name, path string) *feed.Config {
	return &feed.Config{Name: name, URL: ts.URL + path}
}

func (ts *testServer) pipeline() *Pipeline {
	return NewPipeline(feed.NewFetcher(ts.Client(), "rss-epub-test", 0), 2)
}

type digestFixture struct {
	digest    *DigestTask
	store     *dedup.Store
	outputDir string
}

func newDigestFixture(t *testing.T, ts *testServer, feeds ...*feed.Config) *digestFixture {
	t.Helper()

	dir := t.TempDir()
	db, err := database.NewConnection(filepath.Join(dir, "data", "seen.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	store := dedup.NewStore(database.NewSeenArticleRepository(db))
	outputDir := filepath.Join(dir, "out")

	digest := NewDigestTask(feeds, ts.pipeline(), NewRunner(2), store,
		epub.NewBuilder("Test Digest", "en"), outputDir, "digest_2006-01-02.epub")

	return &digestFixture{digest: digest, store: store, outputDir: outputDir}
}
