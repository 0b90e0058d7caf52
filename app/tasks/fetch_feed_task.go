package tasks

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/rss-epub/app/feed"
)

// FetchFeedTask fetches, parses and prepares the articles of one feed. Its
// Result is complete once Execute returns; nothing is shared with sibling
// tasks.
type FetchFeedTask struct {
	Task
	FeedConfig *feed.Config
	pipeline   *Pipeline
	seen       func(id string) bool
	result     feed.FeedResult
}

// NewFetchFeedTask creates a task for feedConfig. seen reports ids that are
// already packaged; their images and pages are not downloaded.
func NewFetchFeedTask(feedConfig *feed.Config, pipeline *Pipeline, seen func(id string) bool) *FetchFeedTask {
	if seen == nil {
		seen = func(string) bool { return false }
	}

	return &FetchFeedTask{
		Task:       NewTask(TaskTypeFetchFeed, feedConfig.Name),
		FeedConfig: feedConfig,
		pipeline:   pipeline,
		seen:       seen,
		result:     feed.FeedResult{Config: feedConfig},
	}
}

func (t *FetchFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := t.pipeline.Fetcher.Fetch(ctx, t.FeedConfig.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	articles, err := t.pipeline.Parser.Run(data, t.FeedConfig.URL)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}
	total := len(articles)

	feed.SortByPublished(articles)
	if maxItems := t.FeedConfig.Settings.MaxItems; maxItems > 0 && len(articles) > maxItems {
		articles = articles[:maxItems]
	}

	t.prepare(ctx, articles)

	kept := t.pipeline.Filterer.Run(articles, t.FeedConfig)

	images := t.fetchImages(ctx, kept)

	t.result = feed.FeedResult{Config: t.FeedConfig, Articles: kept}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", total,
		"considered", len(articles),
		"filtered", len(articles)-len(kept),
		"images", images)

	return nil
}

// Result returns the articles prepared by Execute, newest first.
func (t *FetchFeedTask) Result() feed.FeedResult {
	return t.result
}

// prepare extracts full content when enabled and reduces titles and bodies
// to plain text. Each goroutine only touches its own article.
func (t *FetchFeedTask) prepare(ctx context.Context, articles []feed.Article) {
	var g errgroup.Group
	g.SetLimit(t.workers())

	for i := range articles {
		article := &articles[i]
		g.Go(func() error {
			if t.FeedConfig.Settings.ExtractContent && !t.seen(article.ID) {
				t.extractContent(ctx, article)
			}

			article.Title = cmp.Or(t.pipeline.Sanitizer.Line(article.Title), feed.NoTitle)

			if article.RawBody != "" {
				body, imageURL := t.pipeline.Sanitizer.Run(article.RawBody)
				article.Body = cmp.Or(body, feed.NoDescription)
				article.ImageURL = imageURL
			}
			return nil
		})
	}

	g.Wait()
}

func (t *FetchFeedTask) extractContent(ctx context.Context, article *feed.Article) {
	if article.Link == feed.NoLink {
		return
	}

	page, err := t.pipeline.Fetcher.FetchPage(ctx, article.Link)
	if err != nil {
		slog.Warn("Failed to fetch article page", "feed", t.FeedName, "url", article.Link, "error", err)
		return
	}

	content, err := t.pipeline.ContentExtractor.Run(page, article.Link)
	if err != nil {
		slog.Warn("Failed to extract content", "feed", t.FeedName, "url", article.Link, "error", err)
		return
	}

	slog.Debug("Content extracted", "feed", t.FeedName, "url", article.Link, "content_length", len(content))
	article.RawBody = content
}

// fetchImages downloads the image of every article not yet packaged and
// returns how many were retrieved. Failures leave the article without image.
func (t *FetchFeedTask) fetchImages(ctx context.Context, articles []feed.Article) int {
	var g errgroup.Group
	g.SetLimit(t.workers())

	var fetched atomic.Int32
	for i := range articles {
		article := &articles[i]
		if article.ImageURL == "" || t.seen(article.ID) {
			continue
		}

		g.Go(func() error {
			article.Image = t.pipeline.ImageFetcher.Fetch(ctx, article.ImageURL, t.FeedConfig.URL)
			if article.Image != nil {
				fetched.Add(1)
			}
			return nil
		})
	}

	g.Wait()
	return int(fetched.Load())
}

func (t *FetchFeedTask) workers() int {
	return max(t.pipeline.ImageWorkers, 1)
}
