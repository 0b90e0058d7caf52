package dedup

import (
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-epub/app/database"
	"github.com/lysyi3m/rss-epub/app/feed"
)

// PersistenceError reports that the seen set could not be read or written.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("seen store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store gates which articles get packaged. It is the only reader and writer
// of the persisted seen set.
type Store struct {
	repo database.SeenRepository
}

func NewStore(repo database.SeenRepository) *Store {
	return &Store{repo: repo}
}

// Load returns the persisted seen set. An unreadable store is treated as
// empty so that the run can proceed.
func (s *Store) Load() *SeenSet {
	ids, err := s.repo.LoadIDs()
	if err != nil {
		slog.Error("Failed to load seen articles, starting from an empty set", "error", &PersistenceError{Op: "load", Err: err})
		return NewSeenSet()
	}

	slog.Debug("Seen articles loaded", "count", len(ids))
	return NewSeenSet(ids...)
}

// FilterNew returns the articles whose id is not in seen, inserting each
// surviving id immediately so repeated ids within one run are dropped too.
func (s *Store) FilterNew(articles []feed.Article, seen *SeenSet) []feed.Article {
	fresh := make([]feed.Article, 0, len(articles))
	for _, article := range articles {
		if !seen.Insert(article.ID) {
			slog.Debug("Duplicate article skipped", "id", article.ID, "title", article.Title)
			continue
		}
		fresh = append(fresh, article)
	}
	return fresh
}

// Save persists the ids inserted into seen since it was loaded. Previously
// stored ids are never removed.
func (s *Store) Save(seen *SeenSet) error {
	added := seen.Added()
	if len(added) == 0 {
		return nil
	}

	inserted, err := s.repo.InsertIDs(added)
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	slog.Debug("Seen articles saved", "new", inserted, "total", seen.Len())
	return nil
}

// Count returns the number of persisted ids.
func (s *Store) Count() (int, error) {
	count, err := s.repo.Count()
	if err != nil {
		return 0, &PersistenceError{Op: "count", Err: err}
	}
	return count, nil
}
