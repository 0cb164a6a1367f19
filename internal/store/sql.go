package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amishk599/internradar/internal/model"
)

// Ensure SQLStore implements model.JobStore.
var _ model.JobStore = (*SQLStore)(nil)

// markChunk bounds the number of URLs bound into one UPDATE.
const markChunk = 500

const insertJob = `INSERT INTO internships
	(source, title, company, url, description, location, posted_date, discovered_date, notified)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, FALSE)
	ON CONFLICT (url) DO NOTHING`

const markNotified = `UPDATE internships SET notified = TRUE
	WHERE notified = FALSE AND url IN (?)`

const selectUnnotified = `SELECT source, title, company, url, description, location, posted_date, discovered_date, notified
	FROM internships
	WHERE notified = FALSE
	ORDER BY id`

// SQLStore is the internships table on SQLite or PostgreSQL. Queries are
// written with ? placeholders and rebound for the driver in use.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open handle. The driver name decides the dialect:
// "pgx" is PostgreSQL, anything else is treated as SQLite.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the internships table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.db.DriverName() == "pgx" {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	ddl := `CREATE TABLE IF NOT EXISTS internships (
		` + idColumn + `,
		source          TEXT NOT NULL DEFAULT '',
		title           TEXT NOT NULL,
		company         TEXT NOT NULL DEFAULT '',
		url             TEXT NOT NULL UNIQUE,
		description     TEXT NOT NULL DEFAULT '',
		location        TEXT NOT NULL DEFAULT '',
		posted_date     TEXT NOT NULL DEFAULT '',
		discovered_date TEXT NOT NULL,
		notified        BOOLEAN NOT NULL DEFAULT FALSE
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating internships table: %w", err)
	}
	return nil
}

// InsertIfAbsent relies on the unique url constraint; the affected row count
// tells whether this call created the entry.
func (s *SQLStore) InsertIfAbsent(ctx context.Context, job model.Job) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(insertJob),
		job.Source, job.Title, job.Company, job.URL, job.Description, job.Location,
		job.PostedDate, job.DiscoveredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", job.URL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading insert result for %s: %w", job.URL, err)
	}
	return n == 1, nil
}

// MarkNotified flips the flag for every known URL in one transaction.
func (s *SQLStore) MarkNotified(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning mark-notified tx: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(urls); start += markChunk {
		end := min(start+markChunk, len(urls))
		query, args, err := sqlx.In(markNotified, urls[start:end])
		if err != nil {
			return fmt.Errorf("building mark-notified query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("marking %d entries notified: %w", end-start, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing mark-notified tx: %w", err)
	}
	return nil
}

type internshipRow struct {
	Source         string `db:"source"`
	Title          string `db:"title"`
	Company        string `db:"company"`
	URL            string `db:"url"`
	Description    string `db:"description"`
	Location       string `db:"location"`
	PostedDate     string `db:"posted_date"`
	DiscoveredDate string `db:"discovered_date"`
	Notified       bool   `db:"notified"`
}

// ListUnnotified returns entries still waiting on a digest, oldest first.
func (s *SQLStore) ListUnnotified(ctx context.Context, limit int) ([]model.Job, error) {
	query := selectUnnotified
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []internshipRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing unnotified entries: %w", err)
	}

	jobs := make([]model.Job, 0, len(rows))
	for _, r := range rows {
		discovered, _ := time.Parse(time.RFC3339Nano, r.DiscoveredDate)
		jobs = append(jobs, model.Job{
			Source:       r.Source,
			Title:        r.Title,
			Company:      r.Company,
			URL:          r.URL,
			Description:  r.Description,
			Location:     r.Location,
			PostedDate:   r.PostedDate,
			DiscoveredAt: discovered,
			Notified:     r.Notified,
		})
	}
	return jobs, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
