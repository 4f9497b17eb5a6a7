package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shareofsearch/internal/model"
)

// Store persists fetched records so reports can be rebuilt without calling
// the provider again. A record is identified by (keyword, location code,
// language, month); writing it again replaces the stored volume.
type Store interface {
	UpsertRecords(ctx context.Context, languageCode string, records []model.Record) error
	ListRecords(ctx context.Context, query Query) ([]model.Record, error)
	RecordRun(ctx context.Context, run FetchRun) error
	ListRuns(ctx context.Context, limit int) ([]FetchRun, error)
	Close() error
}

// Query selects stored records. Empty fields do not filter; zero times
// leave the range open on that side.
type Query struct {
	Keywords      []string
	LocationCodes []int
	LanguageCode  string
	From          time.Time
	To            time.Time
}

// FetchRun is one collector invocation.
type FetchRun struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Keywords      []string
	LocationCodes []int
	LanguageCode  string
	Records       int
	Error         string
}

func NewRun(keywords []string, locationCodes []int, languageCode string) FetchRun {
	return FetchRun{
		ID:            uuid.NewString(),
		StartedAt:     time.Now().UTC(),
		Keywords:      keywords,
		LocationCodes: locationCodes,
		LanguageCode:  languageCode,
	}
}

// Finish stamps the run with its outcome.
func (r *FetchRun) Finish(records int, err error) {
	r.FinishedAt = time.Now().UTC()
	r.Records = records
	if err != nil {
		r.Error = err.Error()
	}
}

type NopStore struct{}

func (s *NopStore) UpsertRecords(ctx context.Context, languageCode string, records []model.Record) error {
	return nil
}

func (s *NopStore) ListRecords(ctx context.Context, query Query) ([]model.Record, error) {
	return nil, nil
}

func (s *NopStore) RecordRun(ctx context.Context, run FetchRun) error {
	return nil
}

func (s *NopStore) ListRuns(ctx context.Context, limit int) ([]FetchRun, error) {
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}

var _ Store = (*NopStore)(nil)
