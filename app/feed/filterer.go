package feed

import (
	"fmt"
	"log/slog"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run returns the articles that pass the feed's filters, in their original
// order.
func (f *Filterer) Run(articles []Article, feedConfig *Config) []Article {
	if len(feedConfig.Filters) == 0 {
		return articles
	}

	kept := make([]Article, 0, len(articles))
	for _, article := range articles {
		isFiltered, filterReason := f.applyFilters(article, feedConfig.Filters)
		if isFiltered {
			slog.Debug("Article filtered", "feed", feedConfig.Name, "id", article.ID, "reason", filterReason)
			continue
		}
		kept = append(kept, article)
	}

	return kept
}

func (f *Filterer) applyFilters(article Article, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(article, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(article Article, field string) string {
	switch field {
	case "title":
		return article.Title
	case "description":
		return article.Body
	case "link":
		return article.Link
	default:
		return ""
	}
}
