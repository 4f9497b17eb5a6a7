package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"shareofsearch/internal/cache"
	"shareofsearch/internal/model"
	"shareofsearch/internal/period"
	"shareofsearch/internal/report"
	"shareofsearch/internal/sos"
	"shareofsearch/internal/store"
	"shareofsearch/internal/store/sqlite"
)

var errNoRecords = errors.New("no records match the query")

type buildOptions struct {
	outDir           string
	dbPath           string
	csvPath          string
	granularities    []string
	keywords         []string
	locations        []int
	language         string
	from             string
	to               string
	selectKeywords   []string
	selectCountries  []string
	segmentCountries []string
	print            bool
}

func (a *app) buildCmd() *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compute reports and write meta.json, report.json and data.csv",
		Long: `Load records from the store (or --csv), compute one report per
granularity and write them to the output directory. Records from more than
one location produce a multi-country report with the flexible brand and
country views; the selection flags default to every keyword and country.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.outDir, "out", "site/data", "output directory")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "sqlite database path (default from config)")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "read records from a raw CSV export instead of the store")
	cmd.Flags().StringSliceVarP(&opts.granularities, "granularity", "g", nil, "granularities to build: Y, Q, M (default from config)")
	cmd.Flags().StringSliceVarP(&opts.keywords, "keywords", "k", nil, "only these keywords (default: all stored)")
	cmd.Flags().IntSliceVarP(&opts.locations, "locations", "l", nil, "only these location codes (default: all stored)")
	cmd.Flags().StringVar(&opts.language, "language", "", "language code (default from config)")
	cmd.Flags().StringVar(&opts.from, "from", "", "first month, YYYY-MM")
	cmd.Flags().StringVar(&opts.to, "to", "", "last month, YYYY-MM")
	cmd.Flags().StringSliceVar(&opts.selectKeywords, "select-keywords", nil, "brands for the flexible views (default: all)")
	cmd.Flags().StringSliceVar(&opts.selectCountries, "select-countries", nil, "countries for the flexible views (default: all)")
	cmd.Flags().StringSliceVar(&opts.segmentCountries, "segment-countries", nil, "countries for the custom segment average (default: all)")
	cmd.Flags().BoolVar(&opts.print, "print", false, "print the tables to stdout")
	return cmd
}

func (a *app) runBuild(ctx context.Context, cmd *cobra.Command, opts *buildOptions) error {
	granularities, err := parseGranularities(opts.granularities, a.cfg.Defaults.Granularities)
	if err != nil {
		return err
	}

	query, err := a.query(opts)
	if err != nil {
		return err
	}

	var records []model.Record
	if strings.TrimSpace(opts.csvPath) != "" {
		records, err = loadCSV(opts.csvPath)
	} else {
		dbPath := a.cfg.Store.Path
		if cmd.Flags().Changed("db") {
			dbPath = opts.dbPath
		}
		records, err = loadStore(ctx, dbPath, query)
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errNoRecords
	}

	keywords, countries, codes := dimensions(records)
	kind := report.KindSingle
	if len(codes) > 1 || len(countries) > 1 {
		kind = report.KindMulti
	}
	multi := report.MultiOptions{
		Selection: sos.Selection{
			Keywords:  orDefault(opts.selectKeywords, keywords),
			Countries: orDefault(opts.selectCountries, countries),
		},
		SegmentCountries: orDefault(opts.segmentCountries, countries),
	}

	memo := cache.NewMemo[*report.Report](a.cfg.Cache.Size, a.cfg.Cache.TTL)
	reports := make([]*report.Report, 0, len(granularities))
	for _, granularity := range granularities {
		key := cache.Key{
			Keywords:      keywords,
			LocationCodes: codes,
			Language:      query.LanguageCode,
			From:          query.From,
			To:            query.To,
			Granularity:   granularity,
		}
		built, err := memo.GetOrCompute(key, func() (*report.Report, error) {
			log.Debug().Str("key", key.String()).Msg("building report")
			if kind == report.KindMulti {
				return report.BuildMulti(records, granularity, multi)
			}
			return report.BuildSingle(records, granularity)
		})
		if err != nil {
			return fmt.Errorf("building %s report: %w", granularity, err)
		}
		reports = append(reports, built)
	}

	generatedAt := a.now().UTC()
	meta := report.Meta{
		GeneratedAt:   generatedAt.Format(time.RFC3339),
		Kind:          kind,
		Granularities: granularityNames(granularities),
		Keywords:      keywords,
		Countries:     countries,
		Records:       len(records),
	}
	if err := report.WriteJSON(filepath.Join(opts.outDir, "meta.json"), meta); err != nil {
		return fmt.Errorf("writing meta.json: %w", err)
	}
	if err := report.WriteJSON(filepath.Join(opts.outDir, "report.json"), report.NewFile(generatedAt, reports...)); err != nil {
		return fmt.Errorf("writing report.json: %w", err)
	}
	if err := writeCSV(filepath.Join(opts.outDir, "data.csv"), records, kind == report.KindMulti); err != nil {
		return fmt.Errorf("writing data.csv: %w", err)
	}

	if opts.print {
		out := cmd.OutOrStdout()
		for _, built := range reports {
			for _, table := range built.Tables() {
				fmt.Fprintf(out, "\n%s (%s)\n", table.Title, built.Granularity)
				if err := report.Render(out, table); err != nil {
					return err
				}
			}
		}
	}

	log.Info().Str("out", opts.outDir).Str("kind", string(kind)).Int("records", len(records)).Int("reports", len(reports)).Msg("publisher build complete")
	fmt.Fprintf(cmd.OutOrStdout(), "publisher build complete (out=%s kind=%s records=%d)\n", opts.outDir, kind, len(records))
	return nil
}

func (a *app) query(opts *buildOptions) (store.Query, error) {
	query := store.Query{
		Keywords:      opts.keywords,
		LocationCodes: opts.locations,
		LanguageCode:  strings.TrimSpace(opts.language),
	}
	if query.LanguageCode == "" {
		query.LanguageCode = a.cfg.Defaults.Language
	}
	var err error
	if query.From, err = parseMonth(opts.from); err != nil {
		return store.Query{}, fmt.Errorf("invalid --from: %w", err)
	}
	if query.To, err = parseMonth(opts.to); err != nil {
		return store.Query{}, fmt.Errorf("invalid --to: %w", err)
	}
	if !query.From.IsZero() && !query.To.IsZero() && query.From.After(query.To) {
		return store.Query{}, errors.New("--from is after --to")
	}
	return query, nil
}

func loadStore(ctx context.Context, path string, query store.Query) ([]model.Record, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("db path is required")
	}
	st, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.ListRecords(ctx, query)
}

func loadCSV(path string) ([]model.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return report.ReadRawCSV(file)
}

func writeCSV(path string, records []model.Record, withCountry bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteRawCSV(file, records, withCountry); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// parseGranularities validates every value up front so a typo fails before
// anything is written.
func parseGranularities(values, defaults []string) ([]model.Granularity, error) {
	if len(values) == 0 {
		values = defaults
	}
	granularities := make([]model.Granularity, 0, len(values))
	for _, value := range values {
		granularity, err := period.ParseGranularity(value)
		if err != nil {
			return nil, err
		}
		granularities = append(granularities, granularity)
	}
	return granularities, nil
}

func granularityNames(granularities []model.Granularity) []string {
	names := make([]string, 0, len(granularities))
	for _, granularity := range granularities {
		names = append(names, string(granularity))
	}
	return names
}

// dimensions lists the distinct keywords, country names and location codes
// in records, each sorted.
func dimensions(records []model.Record) ([]string, []string, []int) {
	keywordSet := make(map[string]struct{})
	countrySet := make(map[string]struct{})
	codeSet := make(map[int]struct{})
	for _, record := range records {
		keywordSet[record.Keyword] = struct{}{}
		if record.Country != "" {
			countrySet[record.Country] = struct{}{}
		}
		if record.LocationCode != 0 {
			codeSet[record.LocationCode] = struct{}{}
		}
	}

	keywords := make([]string, 0, len(keywordSet))
	for keyword := range keywordSet {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)

	countries := make([]string, 0, len(countrySet))
	for country := range countrySet {
		countries = append(countries, country)
	}
	sort.Strings(countries)

	codes := make([]int, 0, len(codeSet))
	for code := range codeSet {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return keywords, countries, codes
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}

func parseMonth(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return period.MonthStart(parsed), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not YYYY-MM or YYYY-MM-DD", value)
}
