package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultMaxItems = 50

// LoadConfigs reads the feed list. The order of the returned configs is the
// order of the file and becomes the feed order of the archive.
func LoadConfigs(path string) ([]*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file FeedsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	configs := make([]*Config, 0, len(file.Feeds))
	seen := make(map[string]bool, len(file.Feeds))
	for i, feedConfig := range file.Feeds {
		if feedConfig == nil {
			return nil, fmt.Errorf("feed at index %d is empty", i)
		}
		if feedConfig.Settings.MaxItems == 0 {
			feedConfig.Settings.MaxItems = DefaultMaxItems
		}
		if err := validateConfig(feedConfig); err != nil {
			return nil, fmt.Errorf("invalid feed at index %d: %w", i, err)
		}
		if seen[feedConfig.URL] {
			return nil, fmt.Errorf("feed %s is listed more than once", feedConfig.URL)
		}
		seen[feedConfig.URL] = true
		if feedConfig.Name == "" {
			feedConfig.Name = Label(feedConfig.URL)
		}

		slog.Debug("Configuration loaded", "feed", feedConfig.Name, "enabled", feedConfig.Settings.IsEnabled(), "max_items", feedConfig.Settings.MaxItems)
		configs = append(configs, feedConfig)
	}

	return configs, nil
}

// Label returns the host of a feed URL, falling back to the URL itself.
func Label(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return u.Host
}

func validateConfig(feedConfig *Config) error {
	if feedConfig.URL == "" {
		return fmt.Errorf("feed URL is required")
	}

	u, err := url.Parse(feedConfig.URL)
	if err != nil {
		return fmt.Errorf("invalid feed URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("feed URL must be an absolute http(s) URL: %s", feedConfig.URL)
	}

	if feedConfig.Settings.MaxItems < 0 {
		return fmt.Errorf("max items must be non-negative")
	}

	validFields := map[string]bool{
		"title":       true,
		"description": true,
		"link":        true,
	}

	for i, filter := range feedConfig.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}
