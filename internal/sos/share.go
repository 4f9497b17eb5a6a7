package sos

import (
	"math"

	"shareofsearch/internal/model"
)

// Shares computes each row's percentage of its period's total volume.
// Rows must already be summed per (period, entity). One result is returned
// per input row in input order. Periods whose total is not positive get a
// zero total and zero share. Non-finite volumes count as zero.
func Shares(rows []model.AggregatedVolume) []model.ShareResult {
	results := make([]model.ShareResult, 0, len(rows))
	if len(rows) == 0 {
		return results
	}

	totals := make(map[string]float64)
	for _, row := range rows {
		totals[row.Period] += finiteOrZero(row.Volume)
	}

	for _, row := range rows {
		result := model.ShareResult{
			Period: row.Period,
			Entity: row.Entity,
			Volume: finiteOrZero(row.Volume),
		}
		total := totals[row.Period]
		if total > 0 && !math.IsNaN(total) {
			result.TotalMarketVolume = total
			result.SharePercent = result.Volume / total * 100
		}
		results = append(results, result)
	}
	return results
}

// ShareOfSearch aggregates records by period along axis and computes shares.
func ShareOfSearch(records []model.Record, granularity model.Granularity, axis Axis) ([]model.ShareResult, error) {
	rows, _, err := AggregateByPeriod(records, granularity, axis)
	if err != nil {
		return nil, err
	}
	return Shares(rows), nil
}

// ChartableShares drops rows whose period has no positive market volume.
// Only chart output is filtered; the computed table keeps every row.
func ChartableShares(results []model.ShareResult) []model.ShareResult {
	out := make([]model.ShareResult, 0, len(results))
	for _, result := range results {
		if result.TotalMarketVolume > 0 {
			out = append(out, result)
		}
	}
	return out
}
