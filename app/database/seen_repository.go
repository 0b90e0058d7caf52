package database

import (
	"fmt"
	"time"
)

var _ SeenRepository = (*SeenArticleRepository)(nil)

// SeenArticleRepository persists the ids of packaged articles. Rows are only
// ever inserted.
type SeenArticleRepository struct {
	db *DB
}

func NewSeenArticleRepository(db *DB) *SeenArticleRepository {
	return &SeenArticleRepository{db: db}
}

func (r *SeenArticleRepository) LoadIDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT article_id FROM seen_articles`)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen articles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan seen article row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating seen article rows: %w", err)
	}

	return ids, nil
}

// InsertIDs stores ids in a single transaction: either every id is persisted
// or none is. Already stored ids are ignored. It returns the number of new rows.
func (r *SeenArticleRepository) InsertIDs(ids []string) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO seen_articles (article_id, first_seen_at) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, id := range ids {
		res, err := stmt.Exec(id, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert seen article: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seen articles: %w", err)
	}

	return inserted, nil
}

func (r *SeenArticleRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM seen_articles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get seen article count: %w", err)
	}
	return count, nil
}
