package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"shareofsearch/internal/fetch"
	"shareofsearch/internal/model"
	"shareofsearch/internal/store"
)

type runOptions struct {
	keywords   []string
	locations  []int
	language   string
	from       string
	to         string
	months     int
	sequential bool
	dbPath     string
}

func (a *app) runCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch search volumes and persist them",
		Long: `Fetch monthly search volumes for every keyword in every location and
upsert them into the store. One location uses a single request; more are
fetched in batches with a pause between batches. Countries that fail are
logged and recorded on the run; the ones that succeeded are still stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCollect(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.keywords, "keywords", "k", nil, "comma-separated keywords (default from config)")
	cmd.Flags().IntSliceVarP(&opts.locations, "locations", "l", nil, "comma-separated location codes (default from config)")
	cmd.Flags().StringVar(&opts.language, "language", "", "language code (default from config)")
	cmd.Flags().StringVar(&opts.from, "from", "", "first month, YYYY-MM")
	cmd.Flags().StringVar(&opts.to, "to", "", "last month, YYYY-MM (default: last complete month)")
	cmd.Flags().IntVar(&opts.months, "months", 0, "months to fetch when --from is not set (default from config)")
	cmd.Flags().BoolVar(&opts.sequential, "sequential", false, "fetch one location at a time")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "sqlite database path (default from config, empty disables persistence)")
	return cmd
}

func (a *app) runCollect(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	cfg := a.cfg

	keywords := opts.keywords
	if len(keywords) == 0 {
		keywords = cfg.Defaults.Keywords
	}
	locations := opts.locations
	if len(locations) == 0 {
		locations = cfg.Defaults.LocationCodes
	}
	language := strings.TrimSpace(opts.language)
	if language == "" {
		language = cfg.Defaults.Language
	}
	months := opts.months
	if months <= 0 {
		months = cfg.Defaults.Months
	}
	from, to, err := dateRange(a.now(), opts.from, opts.to, months)
	if err != nil {
		return err
	}

	dbPath := cfg.Store.Path
	if cmd.Flags().Changed("db") {
		dbPath = opts.dbPath
	}
	fetchOptions := cfg.Fetch.Options()
	if opts.sequential {
		fetchOptions.Sequential = true
	}

	provider, err := a.newProvider(cfg)
	if err != nil {
		return err
	}
	st, err := a.openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	fetcher := fetch.New(provider, fetchOptions)
	run := store.NewRun(keywords, locations, language)

	log.Info().
		Str("provider", provider.Name()).
		Strs("keywords", keywords).
		Ints("locations", locations).
		Str("language", language).
		Str("from", from.Format("2006-01")).
		Str("to", to.Format("2006-01")).
		Msg("collector run started")

	started := time.Now()
	records, fetchErr := collect(ctx, fetcher, keywords, locations, language, from, to)
	if len(records) > 0 {
		if err := st.UpsertRecords(ctx, language, records); err != nil {
			run.Finish(0, err)
			recordRun(ctx, st, run)
			return fmt.Errorf("storing records: %w", err)
		}
	}
	run.Finish(len(records), fetchErr)
	recordRun(ctx, st, run)

	if fetchErr != nil && len(records) == 0 {
		return fetchErr
	}
	if fetchErr != nil {
		log.Warn().Err(fetchErr).Msg("some countries failed")
	}

	log.Info().Int("records", len(records)).Dur("elapsed", time.Since(started)).Str("run", run.ID).Msg("collector run complete")
	fmt.Fprintf(cmd.OutOrStdout(), "collector stored records=%d run=%s\n", len(records), run.ID)
	return nil
}

func collect(ctx context.Context, fetcher *fetch.Fetcher, keywords []string, locations []int, language string, from, to time.Time) ([]model.Record, error) {
	if len(locations) == 1 {
		records, err := fetcher.Single(ctx, model.FetchRequest{
			Keywords:     keywords,
			LocationCode: locations[0],
			LanguageCode: language,
			DateFrom:     from,
			DateTo:       to,
		})
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, fetch.ErrNoData
		}
		for i := range records {
			records[i].LocationCode = locations[0]
		}
		return records, nil
	}

	return fetcher.Multi(ctx, fetch.MultiRequest{
		Keywords:      keywords,
		LocationCodes: locations,
		LanguageCode:  language,
		DateFrom:      from,
		DateTo:        to,
	})
}

func recordRun(ctx context.Context, st store.Store, run store.FetchRun) {
	if err := st.RecordRun(ctx, run); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("run", run.ID).Msg("recording fetch run failed")
	}
}
