package api

import (
	"time"

	"github.com/lysyi3m/rss-epub/app/dedup"
	"github.com/lysyi3m/rss-epub/app/feed"
	"github.com/lysyi3m/rss-epub/app/tasks"
)

type SeenCounter interface {
	Count() (int, error)
}

var _ SeenCounter = (*dedup.Store)(nil)

type Handler struct {
	feeds     []*feed.Config
	seen      SeenCounter
	scheduler tasks.TaskSchedulerInterface
	outputDir string
}

type ArchiveInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}
