// Package sos derives share-of-search metrics from monthly search volume
// records: per-period totals, market share, mean monthly volume and
// period-over-period growth. Every function is pure and allocates its own
// output, so callers may use them concurrently.
package sos

import (
	"math"
	"sort"
	"strings"
	"time"

	"shareofsearch/internal/model"
	"shareofsearch/internal/period"
)

// Axis selects which record field is the displayed entity. The other
// dimension is summed away.
type Axis int

const (
	ByKeyword Axis = iota
	ByCountry
)

func (a Axis) Entity(record model.Record) string {
	if a == ByCountry {
		return record.Country
	}
	return record.Keyword
}

// Column is the name of the entity column for tabular output.
func (a Axis) Column() string {
	if a == ByCountry {
		return model.ColumnCountry
	}
	return model.ColumnKeyword
}

type monthlySum struct {
	Month  time.Time
	Entity string
	Volume float64
}

type recordIdentity struct {
	keyword  string
	month    time.Time
	location int
	country  string
	volume   int64
}

// normalize truncates dates to the month and collapses records that are
// exact copies of one another, which is what overlapping fetches produce.
// Distinct records sharing a (keyword, month, location) are kept so that
// they get summed downstream.
func normalize(records []model.Record) []model.Record {
	seen := make(map[recordIdentity]struct{}, len(records))
	out := make([]model.Record, 0, len(records))
	for _, record := range records {
		record.Date = period.MonthStart(record.Date)
		id := recordIdentity{
			keyword:  record.Keyword,
			month:    record.Date,
			location: record.LocationCode,
			country:  record.Country,
			volume:   record.SearchVolume,
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, record)
	}
	return out
}

// monthlySums sums volumes per (calendar month, entity). Output is ordered
// by month then entity.
func monthlySums(records []model.Record, entityOf func(model.Record) string) []monthlySum {
	type key struct {
		month  time.Time
		entity string
	}
	sums := make(map[key]float64)
	order := make([]key, 0)
	for _, record := range normalize(records) {
		k := key{month: record.Date, entity: entityOf(record)}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] += float64(record.SearchVolume)
	}

	sort.Slice(order, func(i, j int) bool {
		if !order[i].month.Equal(order[j].month) {
			return order[i].month.Before(order[j].month)
		}
		return order[i].entity < order[j].entity
	})

	out := make([]monthlySum, 0, len(order))
	for _, k := range order {
		out = append(out, monthlySum{Month: k.month, Entity: k.entity, Volume: sums[k]})
	}
	return out
}

// AggregateByPeriod sums record volumes per (period, entity) along axis and
// returns the rows ordered by period then entity, together with the
// granularity's comparator.
func AggregateByPeriod(records []model.Record, granularity model.Granularity, axis Axis) ([]model.AggregatedVolume, period.Comparator, error) {
	compare, err := period.ComparatorFor(granularity)
	if err != nil {
		return nil, nil, err
	}

	type key struct {
		period string
		entity string
	}
	sums := make(map[key]float64)
	order := make([]key, 0)
	for _, sum := range monthlySums(records, axis.Entity) {
		tag, err := period.Tag(sum.Month, granularity)
		if err != nil {
			return nil, nil, err
		}
		k := key{period: tag, entity: sum.Entity}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] += sum.Volume
	}

	rows := make([]model.AggregatedVolume, 0, len(order))
	for _, k := range order {
		rows = append(rows, model.AggregatedVolume{Period: k.period, Entity: k.entity, Volume: sums[k]})
	}
	sortAggregated(rows, compare)
	return rows, compare, nil
}

// RankEntities orders entities by total volume, largest first. Ties are
// broken by name.
func RankEntities(rows []model.AggregatedVolume) []string {
	totals := make(map[string]float64)
	for _, row := range rows {
		totals[row.Entity] += finiteOrZero(row.Volume)
	}
	entities := make([]string, 0, len(totals))
	for entity := range totals {
		entities = append(entities, entity)
	}
	sort.Slice(entities, func(i, j int) bool {
		if totals[entities[i]] != totals[entities[j]] {
			return totals[entities[i]] > totals[entities[j]]
		}
		return entities[i] < entities[j]
	})
	return entities
}

func sortAggregated(rows []model.AggregatedVolume, compare period.Comparator) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := compareOrLexical(compare, rows[i].Period, rows[j].Period); c != 0 {
			return c < 0
		}
		return rows[i].Entity < rows[j].Entity
	})
}

func compareOrLexical(compare period.Comparator, a, b string) int {
	if compare == nil {
		return strings.Compare(a, b)
	}
	return compare(a, b)
}

func finiteOrZero(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

func filterRecords(records []model.Record, keep func(model.Record) bool) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, record := range records {
		if keep(record) {
			out = append(out, record)
		}
	}
	return out
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}
