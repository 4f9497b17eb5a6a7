package sos

import (
	"math"
	"sort"

	"shareofsearch/internal/model"
	"shareofsearch/internal/period"
)

// Growth computes period-over-period change for every entity. Rows are
// ordered with compare, so adjacency is chronological for any granularity.
// At least two distinct periods are required; otherwise the result is empty.
//
// Policy: prior > 0 gives (curr-prior)/prior*100; prior == 0 with curr > 0
// gives +Inf; no prior period, or 0 -> 0, leaves the growth nil.
func Growth(rows []model.AggregatedVolume, compare period.Comparator) []model.GrowthResult {
	results := make([]model.GrowthResult, 0, len(rows))
	summed := resum(rows)

	periods := make(map[string]struct{})
	for _, row := range summed {
		periods[row.Period] = struct{}{}
	}
	if len(periods) < 2 {
		return results
	}

	sortAggregated(summed, compare)

	prior := make(map[string]float64)
	for _, row := range summed {
		result := model.GrowthResult{
			Entity: row.Entity,
			Period: row.Period,
			Volume: row.Volume,
		}
		if prev, ok := prior[row.Entity]; ok {
			result.PriorVolume = &prev
			result.GrowthPercent = growthPercent(prev, row.Volume)
		}
		prior[row.Entity] = row.Volume
		results = append(results, result)
	}
	return results
}

func growthPercent(prev, curr float64) *float64 {
	if math.IsNaN(prev) || math.IsNaN(curr) {
		return nil
	}
	var value float64
	switch {
	case prev > 0:
		value = (curr - prev) / prev * 100
	case prev == 0 && curr > 0:
		value = math.Inf(1)
	default:
		return nil
	}
	return &value
}

// GrowthHeatmap reshapes growth results into an entity x period matrix.
// Columns follow compare. Rows follow ranking when it is non-empty
// (entities missing from ranking are left out), otherwise entity name
// order. Rows without any defined growth are dropped.
func GrowthHeatmap(results []model.GrowthResult, compare period.Comparator, ranking []string) model.GrowthMatrix {
	matrix := model.GrowthMatrix{Periods: []string{}, Rows: []model.GrowthRow{}}
	if len(results) == 0 {
		return matrix
	}

	cells := make(map[string]map[string]*float64)
	seenPeriods := make(map[string]struct{})
	for _, result := range results {
		if _, ok := seenPeriods[result.Period]; !ok {
			seenPeriods[result.Period] = struct{}{}
			matrix.Periods = append(matrix.Periods, result.Period)
		}
		if cells[result.Entity] == nil {
			cells[result.Entity] = make(map[string]*float64)
		}
		cells[result.Entity][result.Period] = result.GrowthPercent
	}
	sort.SliceStable(matrix.Periods, func(i, j int) bool {
		return compareOrLexical(compare, matrix.Periods[i], matrix.Periods[j]) < 0
	})

	entities := ranking
	if len(entities) == 0 {
		entities = make([]string, 0, len(cells))
		for entity := range cells {
			entities = append(entities, entity)
		}
		sort.Strings(entities)
	}

	for _, entity := range entities {
		row := model.GrowthRow{Entity: entity, Values: make([]*float64, len(matrix.Periods))}
		defined := false
		for i, tag := range matrix.Periods {
			value := cells[entity][tag]
			row.Values[i] = value
			if value != nil {
				defined = true
			}
		}
		if defined {
			matrix.Rows = append(matrix.Rows, row)
		}
	}
	return matrix
}

// GrowthMatrixFor runs Growth and GrowthHeatmap in one step.
func GrowthMatrixFor(rows []model.AggregatedVolume, compare period.Comparator, ranking []string) model.GrowthMatrix {
	return GrowthHeatmap(Growth(rows, compare), compare, ranking)
}

// resum collapses repeated (period, entity) rows into one.
func resum(rows []model.AggregatedVolume) []model.AggregatedVolume {
	type key struct {
		period string
		entity string
	}
	index := make(map[key]int)
	out := make([]model.AggregatedVolume, 0, len(rows))
	for _, row := range rows {
		k := key{period: row.Period, entity: row.Entity}
		if i, ok := index[k]; ok {
			out[i].Volume += row.Volume
			continue
		}
		index[k] = len(out)
		out = append(out, row)
	}
	return out
}
