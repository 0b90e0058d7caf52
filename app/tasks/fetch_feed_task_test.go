package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lysyi3m/rss-epub/app/feed"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Full Article</title></head>
<body>
	<header><nav>Navigation</nav></header>
	<main>
		<article>
			<h1>Full Article</h1>
			<p>This is the full text of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
			<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
			<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information that would be valuable to readers.</p>
		</article>
	</main>
	<footer><p>Copyright 2024</p></footer>
</body>
</html>`

func TestFetchFeedTask_Execute(t *testing.T) {
	ts := newTestServer(t, nil)
	task := NewFetchFeedTask(ts.feedConfig("Example RSS", "/rss"), ts.pipeline(), nil)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result := task.Result()
	if result.Config.Name != "Example RSS" {
		t.Errorf("Expected result for 'Example RSS', got '%s'", result.Config.Name)
	}
	if len(result.Articles) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(result.Articles))
	}

	dated := result.Articles[0]
	if dated.ID != "rss-1" {
		t.Errorf("Expected dated article first, got '%s'", dated.ID)
	}
	if dated.Body != "Hello" {
		t.Errorf("Expected sanitized body 'Hello', got '%s'", dated.Body)
	}
	if dated.ImageURL != "/img.png" {
		t.Errorf("Expected image URL '/img.png', got '%s'", dated.ImageURL)
	}
	if dated.Image == nil || dated.Image.MediaType != "image/png" || dated.Image.Extension != ".png" {
		t.Errorf("Expected a PNG image, got %+v", dated.Image)
	}
	if dated.Image != nil && dated.Image.URL != ts.URL+"/img.png" {
		t.Errorf("Expected image resolved against the feed URL, got '%s'", dated.Image.URL)
	}

	undated := result.Articles[1]
	if undated.PublishedLabel() != feed.NoDate {
		t.Errorf("Expected '%s', got '%s'", feed.NoDate, undated.PublishedLabel())
	}
}

func TestFetchFeedTask_MaxItems(t *testing.T) {
	ts := newTestServer(t, map[string]string{"/many": rssWithItems("a", "b", "c")})
	cfg := ts.feedConfig("Many", "/many")
	cfg.Settings.MaxItems = 2

	task := NewFetchFeedTask(cfg, ts.pipeline(), nil)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	articles := task.Result().Articles
	if len(articles) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(articles))
	}
	if articles[0].ID != "c" || articles[1].ID != "b" {
		t.Errorf("Expected newest articles [c b], got [%s %s]", articles[0].ID, articles[1].ID)
	}
}

func TestFetchFeedTask_Filters(t *testing.T) {
	ts := newTestServer(t, nil)
	cfg := ts.feedConfig("Example RSS", "/rss")
	cfg.Filters = []feed.ConfigFilter{{Field: "title", Excludes: []string{"undated"}}}

	task := NewFetchFeedTask(cfg, ts.pipeline(), nil)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	articles := task.Result().Articles
	if len(articles) != 1 || articles[0].ID != "rss-1" {
		t.Errorf("Expected only rss-1 to survive filtering, got %d articles", len(articles))
	}
}

func TestFetchFeedTask_SkipsImagesOfSeenArticles(t *testing.T) {
	ts := newTestServer(t, nil)
	seen := func(id string) bool { return id == "rss-1" }

	task := NewFetchFeedTask(ts.feedConfig("Example RSS", "/rss"), ts.pipeline(), seen)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if hits := ts.imageHits.Load(); hits != 0 {
		t.Errorf("Expected no image requests, got %d", hits)
	}
	if task.Result().Articles[0].Image != nil {
		t.Error("Expected no image for an already packaged article")
	}
}

func TestFetchFeedTask_ExtractContent(t *testing.T) {
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title><link>%[1]s</link><description>d</description>
<item><guid>full</guid><title>Full</title><link>%[1]s/article</link><description>Teaser only</description></item>
<item><guid>broken</guid><title>Broken</title><link>%[1]s/missing</link><description>Kept teaser</description></item>
</channel></rss>`, serverURL)
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articlePage)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	serverURL = server.URL

	cfg := &feed.Config{Name: "Full", URL: server.URL + "/feed"}
	cfg.Settings.ExtractContent = true

	task := NewFetchFeedTask(cfg, NewPipeline(feed.NewFetcher(server.Client(), "test", 0), 2), nil)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	articles := task.Result().Articles
	if len(articles) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(articles))
	}
	if !strings.Contains(articles[0].Body, "full text of the article") {
		t.Errorf("Expected extracted body, got '%s'", articles[0].Body)
	}
	if strings.Contains(articles[0].Body, "Teaser only") {
		t.Error("Expected feed teaser to be replaced by the extracted content")
	}
	if articles[1].Body != "Kept teaser" {
		t.Errorf("Expected feed body when extraction fails, got '%s'", articles[1].Body)
	}
}

func TestFetchFeedTask_Errors(t *testing.T) {
	ts := newTestServer(t, map[string]string{"/html": "<html><body>not a feed</body></html>"})

	t.Run("fetch error", func(t *testing.T) {
		task := NewFetchFeedTask(ts.feedConfig("Broken", "/broken"), ts.pipeline(), nil)
		err := task.Execute(context.Background())

		var fetchErr *feed.FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("Expected *feed.FetchError, got: %v", err)
		}
		if fetchErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", fetchErr.StatusCode)
		}
	})

	t.Run("parse error", func(t *testing.T) {
		task := NewFetchFeedTask(ts.feedConfig("HTML", "/html"), ts.pipeline(), nil)
		err := task.Execute(context.Background())

		if !errors.Is(err, feed.ErrUnknownFormat) {
			t.Errorf("Expected ErrUnknownFormat, got: %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		task := NewFetchFeedTask(ts.feedConfig("Example RSS", "/rss"), ts.pipeline(), nil)
		if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got: %v", err)
		}
	})
}
