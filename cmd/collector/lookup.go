package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shareofsearch/internal/model"
	"shareofsearch/internal/report"
	"shareofsearch/internal/store"
)

func (a *app) locationsCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List provider locations and their codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := a.newProvider(a.cfg)
			if err != nil {
				return err
			}
			locations, err := provider.ListLocations(cmd.Context())
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout(), locationsTable(locations, filter))
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "case-insensitive substring of the location name")
	return cmd
}

func (a *app) languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List provider languages and their codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := a.newProvider(a.cfg)
			if err != nil {
				return err
			}
			languages, err := provider.ListLanguages(cmd.Context())
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout(), languagesTable(languages))
		},
	}
}

func (a *app) runsCmd() *cobra.Command {
	var (
		limit  int
		dbPath string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent fetch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Store.Path
			if cmd.Flags().Changed("db") {
				path = dbPath
			}
			st, err := a.openStore(path)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout(), runsTable(runs, a.now()))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (default from config)")
	return cmd
}

func locationsTable(locations []model.Location, filter string) report.Table {
	table := report.Table{Title: "Locations", Columns: []string{"Code", "Location"}, Rows: [][]string{}}
	filter = strings.ToLower(strings.TrimSpace(filter))
	for _, location := range locations {
		if filter != "" && !strings.Contains(strings.ToLower(location.Display), filter) {
			continue
		}
		table.Rows = append(table.Rows, []string{strconv.Itoa(location.Code), location.Display})
	}
	return table
}

func languagesTable(languages []model.Language) report.Table {
	table := report.Table{Title: "Languages", Columns: []string{"Code", "Language"}, Rows: [][]string{}}
	for _, language := range languages {
		table.Rows = append(table.Rows, []string{language.Code, language.Name})
	}
	return table
}

func runsTable(runs []store.FetchRun, now time.Time) report.Table {
	table := report.Table{
		Title:   "Fetch runs",
		Columns: []string{"Run", "Started", "Keywords", "Locations", "Language", "Records", "Error"},
		Rows:    [][]string{},
	}
	for _, run := range runs {
		codes := make([]string, 0, len(run.LocationCodes))
		for _, code := range run.LocationCodes {
			codes = append(codes, strconv.Itoa(code))
		}
		table.Rows = append(table.Rows, []string{
			run.ID,
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			strings.Join(run.Keywords, ","),
			strings.Join(codes, ","),
			run.LanguageCode,
			humanize.Comma(int64(run.Records)),
			run.Error,
		})
	}
	return table
}
