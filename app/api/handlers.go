package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-epub/app/feed"
	"github.com/lysyi3m/rss-epub/app/tasks"
)

const archiveExt = ".epub"

func NewHandler(feeds []*feed.Config, seen SeenCounter, scheduler tasks.TaskSchedulerInterface, outputDir string) *Handler {
	return &Handler{
		feeds:     feeds,
		seen:      seen,
		scheduler: scheduler,
		outputDir: outputDir,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	enabled := 0
	for _, feedConfig := range h.feeds {
		if feedConfig.Settings.IsEnabled() {
			enabled++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"timestamp":     time.Now().In(time.Local).Format(time.RFC3339),
		"feeds":         len(h.feeds),
		"enabled_feeds": enabled,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{
		"last_run": h.scheduler.LastRun(),
	}

	if count, err := h.seen.Count(); err == nil {
		stats["seen_articles"] = count
	} else {
		slog.Error("Database error", "operation", "count_seen", "error", err)
	}

	if archives, err := h.listArchives(); err == nil {
		stats["archives"] = len(archives)
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListArchives(c *gin.Context) {
	archives, err := h.listArchives()
	if err != nil {
		slog.Error("Failed to list archives", "dir", h.outputDir, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list archives"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"archives": archives,
		"total":    len(archives),
	})
}

func (h *Handler) GetArchive(c *gin.Context) {
	name := c.Param("name")
	if !validArchiveName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid archive name"})
		return
	}

	path := filepath.Join(h.outputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Archive not found"})
		return
	}

	c.Header("Content-Type", "application/epub+zip")
	c.FileAttachment(path, name)
}

func (h *Handler) TriggerRun(c *gin.Context) {
	err := h.scheduler.Trigger()
	if errors.Is(err, tasks.ErrRunPending) {
		c.JSON(http.StatusConflict, gin.H{"error": "A run is already pending"})
		return
	}
	if err != nil {
		slog.Error("Failed to trigger run", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not running"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Run scheduled",
	})
}

func (h *Handler) listArchives() ([]ArchiveInfo, error) {
	entries, err := os.ReadDir(h.outputDir)
	if errors.Is(err, os.ErrNotExist) {
		return []ArchiveInfo{}, nil
	}
	if err != nil {
		return nil, err
	}

	archives := make([]ArchiveInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !validArchiveName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		archives = append(archives, ArchiveInfo{
			Name:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].ModifiedAt.After(archives[j].ModifiedAt)
	})

	return archives, nil
}

// validArchiveName accepts plain, non-hidden .epub file names only.
func validArchiveName(name string) bool {
	return name != "" &&
		name == filepath.Base(name) &&
		!strings.HasPrefix(name, ".") &&
		strings.HasSuffix(name, archiveExt)
}
