package model

import "time"

type Granularity string

const (
	GranularityMonthly   Granularity = "M"
	GranularityQuarterly Granularity = "Q"
	GranularityYearly    Granularity = "Y"
)

// Column names are part of the tabular output contract.
const (
	ColumnPeriod              = "Period"
	ColumnKeyword             = "Keyword"
	ColumnCountry             = "Country"
	ColumnLocationCode        = "Location Code"
	ColumnDate                = "Date"
	ColumnSearchVolume        = "Search Volume"
	ColumnAverageSearchVolume = "Average Search Volume"
	ColumnAverageTotalVolume  = "Average Total Volume"
	ColumnTotalMarketVolume   = "Total Market Volume"
	ColumnSharePercent        = "Share_Percent"
	ColumnPriorVolume         = "Prev Volume"
	ColumnGrowthPercent       = "Period Growth (%)"
)

// Record is one month of search volume for a keyword in a market.
// Date is always the first day of a calendar month.
type Record struct {
	Keyword      string    `json:"keyword"`
	Date         time.Time `json:"date"`
	SearchVolume int64     `json:"search_volume"`
	LocationCode int       `json:"location_code,omitempty"`
	Country      string    `json:"country,omitempty"`
}

type Location struct {
	Code    int
	Name    string
	Type    string
	Display string
}

type Language struct {
	Code string
	Name string
}

type FetchRequest struct {
	Keywords     []string
	LocationCode int
	LanguageCode string
	DateFrom     time.Time
	DateTo       time.Time
}

// AggregatedVolume is a volume summed per (period, entity). The entity is a
// keyword or a country depending on the axis under analysis.
type AggregatedVolume struct {
	Period string
	Entity string
	Volume float64
}

type ShareResult struct {
	Period            string  `json:"period"`
	Entity            string  `json:"entity"`
	Volume            float64 `json:"volume"`
	TotalMarketVolume float64 `json:"total_market_volume"`
	SharePercent      float64 `json:"share_percent"`
}

// AverageVolumeResult holds the mean monthly volume in a period. Entity is
// empty for segment averages.
type AverageVolumeResult struct {
	Period        string  `json:"period"`
	Entity        string  `json:"entity,omitempty"`
	AverageVolume float64 `json:"average_volume"`
}

// GrowthResult is the change against the same entity's previous period.
// A nil PriorVolume means there was no previous period. A nil GrowthPercent
// means growth is undefined; +Inf marks growth from a zero baseline.
type GrowthResult struct {
	Entity        string
	Period        string
	Volume        float64
	PriorVolume   *float64
	GrowthPercent *float64
}

// GrowthMatrix lays growth out with one row per entity and one column per
// period, in period order.
type GrowthMatrix struct {
	Periods []string    `json:"periods"`
	Rows    []GrowthRow `json:"rows"`
}

type GrowthRow struct {
	Entity string     `json:"entity"`
	Values []*float64 `json:"-"`
}
