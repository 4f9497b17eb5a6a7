// Package report assembles the sos calculations into the views a reader
// consumes: typed result sets, fixed-header tables and the raw CSV export.
package report

import (
	"shareofsearch/internal/model"
	"shareofsearch/internal/sos"
)

type Kind string

const (
	KindSingle Kind = "single"
	KindMulti  Kind = "multi"
)

// Report holds every result set for one granularity. Growth is kept out of
// JSON because it may contain +Inf; the growth tables carry it instead.
type Report struct {
	Kind           Kind                        `json:"kind"`
	Granularity    model.Granularity           `json:"granularity"`
	Ranking        []string                    `json:"ranking"`
	Shares         []model.ShareResult         `json:"shares"`
	ChartShares    []model.ShareResult         `json:"chart_shares"`
	SegmentAverage []model.AverageVolumeResult `json:"segment_average"`
	KeywordAverage []model.AverageVolumeResult `json:"keyword_average"`
	Growth         []model.GrowthResult        `json:"-"`
	Heatmap        model.GrowthMatrix          `json:"heatmap"`

	// Multi-country only.
	BrandAverage   []model.AverageVolumeResult `json:"brand_average,omitempty"`
	CountryAverage []model.AverageVolumeResult `json:"country_average,omitempty"`
	BrandShare     []model.ShareResult         `json:"brand_share,omitempty"`
	CountrySegment []model.AverageVolumeResult `json:"country_segment,omitempty"`
}

// MultiOptions selects the subsets used by the flexible views of a
// multi-country report.
type MultiOptions struct {
	Selection        sos.Selection
	SegmentCountries []string
}

// BuildSingle computes the single-country report with keywords as entities.
func BuildSingle(records []model.Record, granularity model.Granularity) (*Report, error) {
	report := &Report{Kind: KindSingle, Granularity: granularity}
	if err := report.fillTotals(records); err != nil {
		return nil, err
	}
	return report, nil
}

// BuildMulti computes the multi-country report. Totals sum every country
// per keyword; the flexible views use opts.
func BuildMulti(records []model.Record, granularity model.Granularity, opts MultiOptions) (*Report, error) {
	report := &Report{Kind: KindMulti, Granularity: granularity}
	if err := report.fillTotals(records); err != nil {
		return nil, err
	}

	var err error
	if report.BrandAverage, err = sos.FlexibleAverage(records, opts.Selection, sos.ByKeyword, granularity); err != nil {
		return nil, err
	}
	if report.CountryAverage, err = sos.FlexibleAverage(records, opts.Selection, sos.ByCountry, granularity); err != nil {
		return nil, err
	}
	if report.BrandShare, err = sos.FlexibleShare(records, opts.Selection, sos.ByKeyword, granularity); err != nil {
		return nil, err
	}
	if report.CountrySegment, err = sos.SegmentAverageForCountries(records, opts.SegmentCountries, granularity); err != nil {
		return nil, err
	}
	return report, nil
}

func (r *Report) fillTotals(records []model.Record) error {
	rows, compare, err := sos.AggregateByPeriod(records, r.Granularity, sos.ByKeyword)
	if err != nil {
		return err
	}
	r.Ranking = sos.RankEntities(rows)
	r.Shares = sos.Shares(rows)
	r.ChartShares = sos.ChartableShares(r.Shares)
	r.Growth = sos.Growth(rows, compare)
	r.Heatmap = sos.GrowthHeatmap(r.Growth, compare, r.Ranking)

	if r.SegmentAverage, err = sos.SegmentAverage(records, r.Granularity); err != nil {
		return err
	}
	if r.KeywordAverage, err = sos.EntityAverage(records, r.Granularity, sos.ByKeyword); err != nil {
		return err
	}
	return nil
}

// Tables renders every view of the report in display order.
func (r *Report) Tables() []Table {
	tables := []Table{
		ShareTable("Share of search", sos.ByKeyword, r.Shares),
		SegmentTable("Segment average", r.SegmentAverage),
		AverageTable("Average per keyword", sos.ByKeyword, r.KeywordAverage),
		GrowthTable("Period growth", sos.ByKeyword, r.Growth),
		HeatmapTable("Growth heatmap", sos.ByKeyword, r.Heatmap),
	}
	if r.Kind != KindMulti {
		return tables
	}
	return append(tables,
		AverageTable("Average per brand (selected countries)", sos.ByKeyword, r.BrandAverage),
		AverageTable("Average per country (selected brands)", sos.ByCountry, r.CountryAverage),
		ShareTable("Share per brand (selected countries)", sos.ByKeyword, r.BrandShare),
		SegmentTable("Segment average (selected countries)", r.CountrySegment),
	)
}
