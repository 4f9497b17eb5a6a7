// Package fetch pulls monthly search volume from a provider for one or many
// countries, spacing out calls so the provider's rate limit is respected.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"shareofsearch/internal/model"
	"shareofsearch/internal/period"
	"shareofsearch/internal/providers"
)

const (
	defaultBatchSize       = 5
	defaultBatchPause      = 3 * time.Second
	defaultMaxBatchPause   = 10 * time.Second
	defaultPauseFactor     = 1.5
	defaultSequentialPause = 5500 * time.Millisecond

	smallRequestLocations = 3
	largeRequestLocations = 10
	largeRequestBatchSize = 4
)

var (
	ErrInvalidRequest = errors.New("fetch: invalid request")
	ErrNoData         = errors.New("fetch: no data found for the selected countries")
)

type Options struct {
	BatchSize       int
	BatchPause      time.Duration
	MaxBatchPause   time.Duration
	PauseFactor     float64
	SequentialPause time.Duration
	// Sequential fetches one location at a time with SequentialPause
	// between calls instead of concurrent batches.
	Sequential bool
}

type Fetcher struct {
	provider providers.Provider
	options  Options
	sleep    func(context.Context, time.Duration) error
}

func New(provider providers.Provider, opts Options) *Fetcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = defaultBatchPause
	}
	if opts.MaxBatchPause <= 0 {
		opts.MaxBatchPause = defaultMaxBatchPause
	}
	if opts.PauseFactor < 1 {
		opts.PauseFactor = defaultPauseFactor
	}
	if opts.SequentialPause <= 0 {
		opts.SequentialPause = defaultSequentialPause
	}
	return &Fetcher{provider: provider, options: opts, sleep: sleepWithContext}
}

// Single fetches one location and keeps only the months between the first
// of DateFrom's month and the first of DateTo's month, inclusive.
func (f *Fetcher) Single(ctx context.Context, req model.FetchRequest) ([]model.Record, error) {
	req.Keywords = cleanKeywords(req.Keywords)
	if err := validate(req.Keywords, req.LanguageCode, req.DateFrom, req.DateTo); err != nil {
		return nil, err
	}
	if req.LocationCode <= 0 {
		return nil, fmt.Errorf("%w: location code is required", ErrInvalidRequest)
	}

	records, err := f.provider.FetchSearchVolume(ctx, req)
	if err != nil {
		return nil, err
	}
	return withinMonths(records, req.DateFrom, req.DateTo), nil
}

type MultiRequest struct {
	Keywords      []string
	LocationCodes []int
	LanguageCode  string
	DateFrom      time.Time
	DateTo        time.Time
}

// Multi fetches every location in req and tags each record with its country
// name. A failing country does not stop the others: the records that did
// arrive are returned together with a joined error naming each failure.
// ErrNoData is returned when there are neither records nor failures.
func (f *Fetcher) Multi(ctx context.Context, req MultiRequest) ([]model.Record, error) {
	keywords := cleanKeywords(req.Keywords)
	if err := validate(keywords, req.LanguageCode, req.DateFrom, req.DateTo); err != nil {
		return nil, err
	}
	codes := uniqueCodes(req.LocationCodes)
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: at least one location code is required", ErrInvalidRequest)
	}

	names := f.countryNames(ctx)
	size, pause := f.plan(len(codes))

	var (
		records  []model.Record
		failures []error
	)
	for start := 0; start < len(codes); start += size {
		end := min(start+size, len(codes))
		batch := codes[start:end]

		results, err := f.fetchBatch(ctx, keywords, batch, req)
		if err != nil {
			failures = append(failures, err)
			break
		}

		rateLimited := false
		for i, result := range results {
			code := batch[i]
			name := countryName(names, code)
			if result.err != nil {
				log.Warn().Str("country", name).Int("location_code", code).Err(result.err).Msg("country fetch failed")
				failures = append(failures, fmt.Errorf("country %s (%d): %w", name, code, result.err))
				if errors.Is(result.err, providers.ErrRateLimited) {
					rateLimited = true
				}
				continue
			}
			for _, record := range result.records {
				record.Country = name
				record.LocationCode = code
				records = append(records, record)
			}
		}

		if end >= len(codes) {
			break
		}
		if rateLimited && !f.options.Sequential {
			pause = f.escalate(pause)
		}
		if err := f.sleep(ctx, pause); err != nil {
			failures = append(failures, err)
			break
		}
	}

	log.Info().Int("countries", len(codes)).Int("records", len(records)).Int("failures", len(failures)).Msg("multi-country fetch finished")

	if len(records) == 0 && len(failures) == 0 {
		return nil, ErrNoData
	}
	return records, errors.Join(failures...)
}

type batchResult struct {
	records []model.Record
	err     error
}

// fetchBatch calls every location in batch concurrently. Per-location
// failures are reported in the results; only cancellation of ctx fails the
// batch as a whole.
func (f *Fetcher) fetchBatch(ctx context.Context, keywords []string, batch []int, req MultiRequest) ([]batchResult, error) {
	results := make([]batchResult, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, code := range batch {
		g.Go(func() error {
			records, err := f.Single(gctx, model.FetchRequest{
				Keywords:     keywords,
				LocationCode: code,
				LanguageCode: req.LanguageCode,
				DateFrom:     req.DateFrom,
				DateTo:       req.DateTo,
			})
			results[i] = batchResult{records: records, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// plan returns the batch size and the initial pause between batches for n
// locations. Three or fewer locations go out together; more than ten use
// smaller batches.
func (f *Fetcher) plan(n int) (int, time.Duration) {
	if f.options.Sequential {
		return 1, f.options.SequentialPause
	}
	size := f.options.BatchSize
	switch {
	case n <= smallRequestLocations:
		size = n
	case n > largeRequestLocations:
		size = min(size, largeRequestBatchSize)
	}
	return size, f.options.BatchPause
}

func (f *Fetcher) escalate(pause time.Duration) time.Duration {
	next := time.Duration(math.Round(float64(pause) * f.options.PauseFactor))
	if next > f.options.MaxBatchPause {
		next = f.options.MaxBatchPause
	}
	log.Warn().Dur("pause", next).Msg("rate limited, increasing pause between batches")
	return next
}

// countryNames maps location codes to names. A failed lookup is logged and
// leaves the map empty so that codes are used as names.
func (f *Fetcher) countryNames(ctx context.Context) map[int]string {
	names := make(map[int]string)
	locations, err := f.provider.ListLocations(ctx)
	if err != nil {
		log.Warn().Str("provider", f.provider.Name()).Err(err).Msg("location lookup failed, using codes as country names")
		return names
	}
	for _, location := range locations {
		names[location.Code] = location.Name
	}
	return names
}

func countryName(names map[int]string, code int) string {
	if name := names[code]; name != "" {
		return name
	}
	return strconv.Itoa(code)
}

func validate(keywords []string, language string, from, to time.Time) error {
	if len(keywords) == 0 {
		return fmt.Errorf("%w: at least one keyword is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(language) == "" {
		return fmt.Errorf("%w: language code is required", ErrInvalidRequest)
	}
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("%w: date range is required", ErrInvalidRequest)
	}
	if from.After(to) {
		return fmt.Errorf("%w: date from %s is after date to %s", ErrInvalidRequest, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	return nil
}

func withinMonths(records []model.Record, from, to time.Time) []model.Record {
	first := period.MonthStart(from)
	last := period.MonthStart(to)
	out := make([]model.Record, 0, len(records))
	for _, record := range records {
		month := period.MonthStart(record.Date)
		if month.Before(first) || month.After(last) {
			continue
		}
		record.Date = month
		out = append(out, record)
	}
	return out
}

func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		out = append(out, keyword)
	}
	return out
}

func uniqueCodes(codes []int) []int {
	out := make([]int, 0, len(codes))
	seen := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		if code <= 0 {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
