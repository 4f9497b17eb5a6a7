package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	_ "modernc.org/sqlite"

	"shareofsearch/internal/model"
	"shareofsearch/internal/period"
	"shareofsearch/internal/store"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertRecords writes records in one transaction. Dates are truncated to
// the month.
func (s *Store) UpsertRecords(ctx context.Context, languageCode string, records []model.Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO search_volumes (
			keyword, location_code, language_code, date, country, search_volume, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(keyword, location_code, language_code, date)
		DO UPDATE SET
			country = excluded.country,
			search_volume = excluded.search_volume,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(timestampLayout)
	for _, record := range records {
		date := period.MonthStart(record.Date)
		_, err = stmt.ExecContext(
			ctx,
			record.Keyword,
			record.LocationCode,
			languageCode,
			date.Format(dateLayout),
			record.Country,
			record.SearchVolume,
			now,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ListRecords(ctx context.Context, query store.Query) ([]model.Record, error) {
	statement := `
		SELECT keyword, location_code, date, country, search_volume
		FROM search_volumes
		WHERE 1 = 1
	`
	args := []any{}
	if len(query.Keywords) > 0 {
		statement += " AND keyword IN (" + placeholders(len(query.Keywords)) + ")"
		for _, keyword := range query.Keywords {
			args = append(args, keyword)
		}
	}
	if len(query.LocationCodes) > 0 {
		statement += " AND location_code IN (" + placeholders(len(query.LocationCodes)) + ")"
		for _, code := range query.LocationCodes {
			args = append(args, code)
		}
	}
	if strings.TrimSpace(query.LanguageCode) != "" {
		statement += " AND language_code = ?"
		args = append(args, query.LanguageCode)
	}
	if !query.From.IsZero() {
		statement += " AND date >= ?"
		args = append(args, period.MonthStart(query.From).Format(dateLayout))
	}
	if !query.To.IsZero() {
		statement += " AND date <= ?"
		args = append(args, period.MonthStart(query.To).Format(dateLayout))
	}
	statement += " ORDER BY keyword, location_code, date"

	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]model.Record, 0)
	for rows.Next() {
		var record model.Record
		var date string
		if err := rows.Scan(&record.Keyword, &record.LocationCode, &date, &record.Country, &record.SearchVolume); err != nil {
			return nil, err
		}
		record.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("sqlite: bad date %q for %s: %w", date, record.Keyword, err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) RecordRun(ctx context.Context, run store.FetchRun) error {
	keywords, err := json.Marshal(run.Keywords)
	if err != nil {
		return err
	}
	codes, err := json.Marshal(run.LocationCodes)
	if err != nil {
		return err
	}

	var finishedAt any
	if !run.FinishedAt.IsZero() {
		finishedAt = run.FinishedAt.UTC().Format(timestampLayout)
	}
	var runErr any
	if run.Error != "" {
		runErr = run.Error
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fetch_runs (
			id, started_at, finished_at, keywords, location_codes, language_code, records, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			records = excluded.records,
			error = excluded.error
	`,
		run.ID,
		run.StartedAt.UTC().Format(timestampLayout),
		finishedAt,
		string(keywords),
		string(codes),
		run.LanguageCode,
		run.Records,
		runErr,
	)
	return err
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.FetchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, keywords, location_codes, language_code, records, error
		FROM fetch_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]store.FetchRun, 0)
	for rows.Next() {
		var (
			run        store.FetchRun
			startedAt  string
			finishedAt sql.NullString
			keywords   string
			codes      string
			runErr     sql.NullString
		)
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &keywords, &codes, &run.LanguageCode, &run.Records, &runErr); err != nil {
			return nil, err
		}
		if run.StartedAt, err = time.Parse(timestampLayout, startedAt); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			if run.FinishedAt, err = time.Parse(timestampLayout, finishedAt.String); err != nil {
				return nil, err
			}
		}
		if err := json.Unmarshal([]byte(keywords), &run.Keywords); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(codes), &run.LocationCodes); err != nil {
			return nil, err
		}
		run.Error = runErr.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS search_volumes (
			keyword TEXT NOT NULL,
			location_code INTEGER NOT NULL,
			language_code TEXT NOT NULL,
			date TEXT NOT NULL,
			country TEXT NOT NULL DEFAULT '',
			search_volume INTEGER NOT NULL,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY (keyword, location_code, language_code, date)
		);`,
		`CREATE TABLE IF NOT EXISTS fetch_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			keywords TEXT NOT NULL,
			location_codes TEXT NOT NULL,
			language_code TEXT NOT NULL,
			records INTEGER NOT NULL DEFAULT 0,
			error TEXT
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}
	log.Debug().Int("statements", len(statements)).Msg("sqlite schema migrated")

	return nil
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimRight(strings.Repeat("?,", count), ",")
}

var _ store.Store = (*Store)(nil)
