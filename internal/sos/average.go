package sos

import (
	"sort"
	"time"

	"shareofsearch/internal/model"
	"shareofsearch/internal/period"
)

// SegmentAverage returns, per period, the summed volume of all entities
// divided by the number of distinct calendar months present in that period.
// A period with two of its three months in the data is divided by two.
func SegmentAverage(records []model.Record, granularity model.Granularity) ([]model.AverageVolumeResult, error) {
	compare, err := period.ComparatorFor(granularity)
	if err != nil {
		return nil, err
	}

	segment := monthlySums(records, func(model.Record) string { return "" })

	totals := make(map[string]float64)
	months := make(map[string]map[time.Time]struct{})
	order := make([]string, 0)
	for _, sum := range segment {
		tag, err := period.Tag(sum.Month, granularity)
		if err != nil {
			return nil, err
		}
		if _, ok := months[tag]; !ok {
			months[tag] = make(map[time.Time]struct{})
			order = append(order, tag)
		}
		months[tag][sum.Month] = struct{}{}
		totals[tag] += sum.Volume
	}

	period.Sort(order, compare)
	results := make([]model.AverageVolumeResult, 0, len(order))
	for _, tag := range order {
		count := len(months[tag])
		if count == 0 {
			continue
		}
		results = append(results, model.AverageVolumeResult{
			Period:        tag,
			AverageVolume: totals[tag] / float64(count),
		})
	}
	return results, nil
}

// EntityAverage returns the mean of each entity's monthly sums within each
// period. An entity's average only counts the months it has data for,
// regardless of the coverage of other entities in the same period.
func EntityAverage(records []model.Record, granularity model.Granularity, axis Axis) ([]model.AverageVolumeResult, error) {
	compare, err := period.ComparatorFor(granularity)
	if err != nil {
		return nil, err
	}

	type key struct {
		period string
		entity string
	}
	type accumulator struct {
		sum   float64
		count int
	}
	groups := make(map[key]*accumulator)
	order := make([]key, 0)
	for _, sum := range monthlySums(records, axis.Entity) {
		tag, err := period.Tag(sum.Month, granularity)
		if err != nil {
			return nil, err
		}
		k := key{period: tag, entity: sum.Entity}
		acc, ok := groups[k]
		if !ok {
			acc = &accumulator{}
			groups[k] = acc
			order = append(order, k)
		}
		acc.sum += sum.Volume
		acc.count++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if c := compare(order[i].period, order[j].period); c != 0 {
			return c < 0
		}
		return order[i].entity < order[j].entity
	})

	results := make([]model.AverageVolumeResult, 0, len(order))
	for _, k := range order {
		acc := groups[k]
		if acc.count == 0 {
			continue
		}
		results = append(results, model.AverageVolumeResult{
			Period:        k.period,
			Entity:        k.entity,
			AverageVolume: acc.sum / float64(acc.count),
		})
	}
	return results, nil
}
