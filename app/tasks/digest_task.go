package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lysyi3m/rss-epub/app/dedup"
	"github.com/lysyi3m/rss-epub/app/epub"
	"github.com/lysyi3m/rss-epub/app/feed"
)

// DigestTask runs the whole pipeline once: load the seen set, process every
// enabled feed, keep the new articles, write one archive and persist the seen
// set.
type DigestTask struct {
	Task
	feeds         []*feed.Config
	pipeline      *Pipeline
	runner        *Runner
	store         *dedup.Store
	builder       *epub.Builder
	outputDir     string
	archiveLayout string
	now           func() time.Time
	summary       RunSummary
}

func NewDigestTask(feeds []*feed.Config, pipeline *Pipeline, runner *Runner, store *dedup.Store,
	builder *epub.Builder, outputDir, archiveLayout string) *DigestTask {
	return &DigestTask{
		Task:          NewTask(TaskTypeDigest, ""),
		feeds:         feeds,
		pipeline:      pipeline,
		runner:        runner,
		store:         store,
		builder:       builder,
		outputDir:     outputDir,
		archiveLayout: archiveLayout,
		now:           time.Now,
	}
}

// Execute returns nil when there is nothing new to package. Errors are
// returned only when the archive or the seen set cannot be written.
func (t *DigestTask) Execute(ctx context.Context) error {
	t.summary = RunSummary{StartedAt: t.now()}

	err := t.execute(ctx)

	t.summary.FinishedAt = t.now()
	if err != nil {
		t.summary.Error = err.Error()
	}
	return err
}

// Summary returns the outcome of the latest Execute.
func (t *DigestTask) Summary() RunSummary {
	return t.summary
}

func (t *DigestTask) execute(ctx context.Context) error {
	seen := t.store.Load()

	var fetchTasks []*FetchFeedTask
	for _, feedConfig := range t.feeds {
		if !feedConfig.Settings.IsEnabled() {
			slog.Debug("Feed disabled, skipping", "feed", feedConfig.Name)
			continue
		}
		fetchTasks = append(fetchTasks, NewFetchFeedTask(feedConfig, t.pipeline, seen.Contains))
	}

	results := t.runner.Run(ctx, fetchTasks)
	t.summary.Feeds = len(fetchTasks)
	t.summary.FailedFeeds = len(fetchTasks) - len(results)

	fresh := make([]feed.FeedResult, 0, len(results))
	for _, result := range results {
		articles := t.store.FilterNew(result.Articles, seen)
		if len(articles) == 0 {
			slog.Debug("No new articles", "feed", result.Config.Name)
			continue
		}
		fresh = append(fresh, feed.FeedResult{Config: result.Config, Articles: articles})
	}

	archive, err := t.builder.Build(fresh)
	if errors.Is(err, epub.ErrNothingToBuild) {
		slog.Info("No new articles, nothing to package", "feeds", t.summary.Feeds, "failed", t.summary.FailedFeeds)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to build archive: %w", err)
	}

	path := availablePath(filepath.Join(t.outputDir, epub.ArchiveName(t.archiveLayout, t.now())))
	if err := epub.WriteFile(archive, path); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	if err := t.store.Save(seen); err != nil {
		return fmt.Errorf("archive %s written but seen articles were not saved: %w", path, err)
	}

	t.summary.Articles = archive.Articles
	t.summary.Images = archive.Images
	t.summary.Archive = filepath.Base(path)

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"feeds", t.summary.Feeds,
		"failed", t.summary.FailedFeeds,
		"pages", archive.Pages,
		"articles", archive.Articles,
		"images", archive.Images,
		"archive", path)

	return nil
}

// availablePath returns path, or path with a numeric suffix when a file of
// that name already exists, so that an earlier archive of the same day is
// never replaced.
func availablePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}
