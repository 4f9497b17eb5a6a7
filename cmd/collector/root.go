package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"shareofsearch/internal/config"
	"shareofsearch/internal/logging"
	"shareofsearch/internal/period"
	"shareofsearch/internal/providers"
	"shareofsearch/internal/providers/dataforseo"
	"shareofsearch/internal/store"
	"shareofsearch/internal/store/sqlite"
)

// app carries what every subcommand shares once configuration is loaded.
// newProvider is swapped out in tests.
type app struct {
	cfgFile string
	verbose bool
	cfg     *config.Config
	now     func() time.Time

	newProvider func(cfg *config.Config) (providers.Provider, error)
}

func newRootCmd() *cobra.Command {
	a := &app{
		now: time.Now,
		newProvider: func(cfg *config.Config) (providers.Provider, error) {
			return dataforseo.NewWithConfig(cfg.Provider.DataForSEO())
		},
	}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "collector",
		Short: "Fetch monthly search volumes and store them",
		Long: `collector pulls monthly Google Ads search volumes for a keyword set in
one or more countries and stores them in SQLite for the publisher.

Example usage:
  collector run                                  # defaults from sos.yaml
  collector run -k rapha,maap -l 2703,2203       # two keywords, two countries
  collector run --from 2023-01 --to 2024-12      # explicit month range
  collector locations --filter slov              # look up location codes
  collector runs                                 # recent fetch runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./sos.yaml or $HOME/.config/sos/sos.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(a.runCmd(), a.locationsCmd(), a.languagesCmd(), a.runsCmd())
	return root
}

func (a *app) initConfig() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	logging.Setup(cfg.Log, a.verbose)

	log.Debug().
		Str("store", cfg.Store.Path).
		Int("batch_size", cfg.Fetch.BatchSize).
		Bool("sequential", cfg.Fetch.Sequential).
		Msg("configuration loaded")
	return nil
}

func (a *app) openStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

// dateRange resolves the month window to fetch. Explicit bounds win; the
// default ends with the last complete month and spans months months.
func dateRange(now time.Time, fromValue, toValue string, months int) (time.Time, time.Time, error) {
	to := period.MonthStart(now).AddDate(0, -1, 0)
	if strings.TrimSpace(toValue) != "" {
		parsed, err := parseMonth(toValue)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		to = parsed
	}

	if months < 1 {
		months = 1
	}
	from := to.AddDate(0, -(months - 1), 0)
	if strings.TrimSpace(fromValue) != "" {
		parsed, err := parseMonth(fromValue)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		from = parsed
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from %s is after --to %s", from.Format("2006-01"), to.Format("2006-01"))
	}
	return from, to, nil
}

func parseMonth(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return period.MonthStart(parsed), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not YYYY-MM or YYYY-MM-DD", value)
}
