package sos

import "shareofsearch/internal/model"

// Selection restricts multi-country records to a keyword subset and a
// country subset. Both must be non-empty; there is no implicit "all".
type Selection struct {
	Keywords  []string
	Countries []string
}

func (s Selection) empty() bool {
	return len(s.Keywords) == 0 || len(s.Countries) == 0
}

func (s Selection) filter(records []model.Record) []model.Record {
	keywords := stringSet(s.Keywords)
	countries := stringSet(s.Countries)
	return filterRecords(records, func(record model.Record) bool {
		_, keywordOK := keywords[record.Keyword]
		_, countryOK := countries[record.Country]
		return keywordOK && countryOK
	})
}

// FlexibleAverage keeps the records in the selection, sums the axis that is
// not displayed per calendar month, and returns the per-entity mean of the
// monthly sums. With ByKeyword countries are summed away; with ByCountry
// keywords are.
func FlexibleAverage(records []model.Record, selection Selection, axis Axis, granularity model.Granularity) ([]model.AverageVolumeResult, error) {
	if selection.empty() {
		return []model.AverageVolumeResult{}, nil
	}
	return EntityAverage(selection.filter(records), granularity, axis)
}

// FlexibleShare is the share counterpart of FlexibleAverage.
func FlexibleShare(records []model.Record, selection Selection, axis Axis, granularity model.Granularity) ([]model.ShareResult, error) {
	if selection.empty() {
		return []model.ShareResult{}, nil
	}
	return ShareOfSearch(selection.filter(records), granularity, axis)
}

// SegmentAverageForCountries is the segment average over every keyword in
// the given countries.
func SegmentAverageForCountries(records []model.Record, countries []string, granularity model.Granularity) ([]model.AverageVolumeResult, error) {
	if len(countries) == 0 {
		return []model.AverageVolumeResult{}, nil
	}
	set := stringSet(countries)
	return SegmentAverage(filterRecords(records, func(record model.Record) bool {
		_, ok := set[record.Country]
		return ok
	}), granularity)
}
