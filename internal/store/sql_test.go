package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/amishk599/internradar/internal/model"
)

func newTestStore(t *testing.T) model.JobStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testJob(url, title string, at time.Time) model.Job {
	return model.Job{
		Source:       "acme",
		Title:        title,
		Company:      "Acme",
		URL:          url,
		Location:     "Remote",
		Description:  "Build things",
		DiscoveredAt: at,
	}
}

func TestSQLStore_InsertIfAbsentIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	inserted, err := s.InsertIfAbsent(ctx, testJob("https://acme.com/jobs/1", "Software Intern", at))
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to report true")
	}

	inserted, err = s.InsertIfAbsent(ctx, testJob("https://acme.com/jobs/1", "Renamed Posting", at.Add(time.Hour)))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate insert to report false")
	}

	jobs, err := s.ListUnnotified(ctx, 0)
	if err != nil {
		t.Fatalf("ListUnnotified: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d entries, want 1", len(jobs))
	}
	if jobs[0].Title != "Software Intern" {
		t.Errorf("stored title = %q, want the original", jobs[0].Title)
	}
	if !jobs[0].DiscoveredAt.Equal(at) {
		t.Errorf("DiscoveredAt = %v, want %v", jobs[0].DiscoveredAt, at)
	}
	if jobs[0].Notified {
		t.Error("new entry should not be notified")
	}
}

func TestSQLStore_MarkNotified(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, u := range []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"} {
		if _, err := s.InsertIfAbsent(ctx, testJob(u, "Intern", now)); err != nil {
			t.Fatalf("insert %s: %v", u, err)
		}
	}

	urls := []string{"https://a.com/1", "https://a.com/3", "https://unknown.com/x"}
	if err := s.MarkNotified(ctx, urls); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}
	// Marking again is a no-op.
	if err := s.MarkNotified(ctx, urls); err != nil {
		t.Fatalf("second MarkNotified: %v", err)
	}
	if err := s.MarkNotified(ctx, nil); err != nil {
		t.Fatalf("empty MarkNotified: %v", err)
	}

	jobs, err := s.ListUnnotified(ctx, 0)
	if err != nil {
		t.Fatalf("ListUnnotified: %v", err)
	}
	if len(jobs) != 1 || jobs[0].URL != "https://a.com/2" {
		t.Fatalf("unnotified = %+v, want only https://a.com/2", jobs)
	}
}

func TestSQLStore_ListUnnotifiedOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, u := range []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"} {
		if _, err := s.InsertIfAbsent(ctx, testJob(u, "Intern", now)); err != nil {
			t.Fatalf("insert %s: %v", u, err)
		}
	}

	jobs, err := s.ListUnnotified(ctx, 2)
	if err != nil {
		t.Fatalf("ListUnnotified: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d entries, want 2", len(jobs))
	}
	if jobs[0].URL != "https://a.com/1" || jobs[1].URL != "https://a.com/2" {
		t.Errorf("order = %s, %s", jobs[0].URL, jobs[1].URL)
	}
}

func TestSQLStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(ctx, "sqlite://"+dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.InsertIfAbsent(ctx, testJob("https://a.com/1", "Intern", time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Close()

	s, err = Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	inserted, err := s.InsertIfAbsent(ctx, testJob("https://a.com/1", "Intern", time.Now()))
	if err != nil {
		t.Fatalf("insert after reopen: %v", err)
	}
	if inserted {
		t.Error("entry should persist across reopen")
	}
}

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewSQLStore(sqlx.NewDb(mockDB, "pgx")), mock
}

func TestSQLStore_Postgres_InsertUsesDollarPlaceholders(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	job := testJob("https://acme.com/jobs/1", "Software Intern", time.Now())

	mock.ExpectExec(`(?s)INSERT INTO internships.*VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, FALSE\)\s+ON CONFLICT \(url\) DO NOTHING`).
		WithArgs("acme", "Software Intern", "Acme", job.URL, "Build things", "Remote", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO internships`).
		WithArgs("acme", "Software Intern", "Acme", job.URL, "Build things", "Remote", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := s.InsertIfAbsent(ctx, job)
	if err != nil || !inserted {
		t.Fatalf("first insert = %v, %v; want true, nil", inserted, err)
	}
	inserted, err = s.InsertIfAbsent(ctx, job)
	if err != nil || inserted {
		t.Fatalf("second insert = %v, %v; want false, nil", inserted, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLStore_Postgres_InsertFailureReported(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO internships`).WillReturnError(errors.New("connection reset by peer"))

	inserted, err := s.InsertIfAbsent(context.Background(), testJob("https://a.com/1", "Intern", time.Now()))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if inserted {
		t.Error("failed insert must not report inserted")
	}
}

func TestSQLStore_Postgres_MarkNotifiedExpandsURLs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE internships SET notified = TRUE\s+WHERE notified = FALSE AND url IN \(\$1, \$2\)`).
		WithArgs("https://a.com/1", "https://a.com/2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := s.MarkNotified(context.Background(), []string{"https://a.com/1", "https://a.com/2"}); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLStore_Postgres_MarkNotifiedRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE internships`).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	if err := s.MarkNotified(context.Background(), []string{"https://a.com/1"}); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSQLStore_Postgres_ListUnnotified(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	cols := []string{"source", "title", "company", "url", "description", "location", "posted_date", "discovered_date", "notified"}
	mock.ExpectQuery(`FROM internships\s+WHERE notified = FALSE\s+ORDER BY id LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("acme", "Intern", "Acme", "https://a.com/1", "", "NYC", "May 1", at.Format(time.RFC3339Nano), false))

	jobs, err := s.ListUnnotified(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListUnnotified: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d entries, want 1", len(jobs))
	}
	if jobs[0].Location != "NYC" || jobs[0].PostedDate != "May 1" || !jobs[0].DiscoveredAt.Equal(at) {
		t.Errorf("unexpected entry: %+v", jobs[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
