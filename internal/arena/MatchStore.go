package arena

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const matchesTable = "matches"

type MatchStore struct {
	db *sql.DB
}

func NewMatchStore(path string) (*MatchStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open match database %s: %w", path, err)
	}

	store := &MatchStore{db: db}
	if err := store.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (storeImpl *MatchStore) createTable() error {
	const createTableSQL = `
	CREATE TABLE IF NOT EXISTS ` + matchesTable + ` (
		id TEXT PRIMARY KEY,
		agent TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		final_x INTEGER NOT NULL,
		final_y INTEGER NOT NULL,
		visited INTEGER NOT NULL,
		invalid INTEGER NOT NULL,
		moves TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);`

	if _, err := storeImpl.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to execute CREATE TABLE: %w", err)
	}
	return nil
}

func (storeImpl *MatchStore) Save(result Result) error {
	const insertSQL = `
	INSERT INTO ` + matchesTable + ` (id, agent, width, height, ticks, final_x, final_y, visited, invalid, moves, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	_, err := storeImpl.db.Exec(insertSQL,
		result.ID.String(), result.Agent, result.Width, result.Height, result.Ticks,
		result.Final.X, result.Final.Y, result.Visited, result.Invalid, result.Moves,
		result.StartedAt.UTC(), result.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert match %s: %w", result.ID, err)
	}
	return nil
}

// Recent returns up to limit matches, newest first.
func (storeImpl *MatchStore) Recent(limit int) ([]Result, error) {
	const selectSQL = `
	SELECT id, agent, width, height, ticks, final_x, final_y, visited, invalid, moves, started_at, finished_at
	FROM ` + matchesTable + `
	ORDER BY finished_at DESC
	LIMIT ?;`

	rows, err := storeImpl.db.Query(selectSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			result     Result
			id         string
			startedAt  time.Time
			finishedAt time.Time
		)
		err := rows.Scan(&id, &result.Agent, &result.Width, &result.Height, &result.Ticks,
			&result.Final.X, &result.Final.Y, &result.Visited, &result.Invalid, &result.Moves,
			&startedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		result.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("match id %q: %w", id, err)
		}
		result.StartedAt = startedAt
		result.FinishedAt = finishedAt
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}
	return results, nil
}

func (storeImpl *MatchStore) Count() (int, error) {
	const countSQL = `SELECT COUNT(*) FROM ` + matchesTable + `;`
	var count int
	if err := storeImpl.db.QueryRow(countSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return count, nil
}

func (storeImpl *MatchStore) Close() error {
	return storeImpl.db.Close()
}
