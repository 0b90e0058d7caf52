package feed

import (
	"time"
)

// Placeholders used when a feed item lacks the corresponding field.
const (
	NoTitle       = "No title"
	NoDescription = "No description"
	NoDate        = "No date"
	NoLink        = "#"
)

// Article is one normalized item or entry. Created by the Parser, enriched by
// the Sanitizer and the ImageFetcher, read-only after its feed task finishes.
type Article struct {
	ID          string
	Title       string
	Body        string    // plain text
	RawBody     string    // HTML as found in the feed (or extracted from the page)
	PublishedAt time.Time // zero when the feed carries no usable date
	Link        string
	ImageURL    string
	Image       *Image
}

// PublishedLabel renders the publication time, or NoDate when unknown.
func (a Article) PublishedLabel() string {
	if a.PublishedAt.IsZero() {
		return NoDate
	}
	return a.PublishedAt.Format(time.RFC1123)
}

type Image struct {
	URL       string // resolved absolute URL
	Data      []byte
	MediaType string
	Extension string // including the leading dot
}

// FeedResult is the ordered set of articles of one feed for one run.
type FeedResult struct {
	Config   *Config
	Articles []Article
}

// Configuration types

type FeedsFile struct {
	Feeds []*Config `yaml:"feeds"`
}

type Config struct {
	Name     string         `yaml:"name"`
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:",inline"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled        *bool `yaml:"enabled"`
	MaxItems       int   `yaml:"max_items"`
	ExtractContent bool  `yaml:"extract_content"` // fetch the article page and extract its content
}

func (s ConfigSettings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
