package tasks

import (
	"time"

	"github.com/lysyi3m/rss-epub/app/feed"
)

// Pipeline bundles the per-feed processing stages shared by every
// FetchFeedTask of a run.
type Pipeline struct {
	Fetcher          *feed.Fetcher
	Parser           *feed.Parser
	Sanitizer        *feed.Sanitizer
	Filterer         *feed.Filterer
	ContentExtractor *feed.ContentExtractor
	ImageFetcher     *feed.ImageFetcher
	ImageWorkers     int
}

func NewPipeline(fetcher *feed.Fetcher, imageWorkers int) *Pipeline {
	return &Pipeline{
		Fetcher:          fetcher,
		Parser:           feed.NewParser(),
		Sanitizer:        feed.NewSanitizer(),
		Filterer:         feed.NewFilterer(),
		ContentExtractor: feed.NewContentExtractor(),
		ImageFetcher:     feed.NewImageFetcher(fetcher),
		ImageWorkers:     imageWorkers,
	}
}

// RunSummary describes the outcome of one digest run.
type RunSummary struct {
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Feeds       int       `json:"feeds"`
	FailedFeeds int       `json:"failed_feeds"`
	Articles    int       `json:"articles"`
	Images      int       `json:"images"`
	Archive     string    `json:"archive,omitempty"`
	Error       string    `json:"error,omitempty"`
}
