package main

import (
	"fmt"
	"os"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"shareofsearch/internal/config"
	"shareofsearch/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "publisher:", err)
		os.Exit(1)
	}
}

type app struct {
	cfgFile string
	verbose bool
	cfg     *config.Config
	now     func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "publisher",
		Short: "Build share-of-search reports from stored volumes",
		Long: `publisher reads monthly search volumes from the collector's SQLite store
(or a raw CSV export) and writes share, average and growth reports.

Example usage:
  publisher build                               # every configured granularity
  publisher build -g Q --print                  # quarterly, tables on stdout
  publisher build --csv data.csv --out site/data
  publisher build --select-countries Slovakia,Czechia --segment-countries Slovakia`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			a.cfg = cfg
			logging.Setup(cfg.Log, a.verbose)
			log.Debug().Str("store", cfg.Store.Path).Strs("granularities", cfg.Defaults.Granularities).Msg("configuration loaded")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./sos.yaml or $HOME/.config/sos/sos.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(a.buildCmd())
	return root
}
