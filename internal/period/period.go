package period

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"shareofsearch/internal/model"
)

var ErrInvalidGranularity = errors.New("period: invalid granularity")

// Comparator orders period tags produced under one granularity. It returns
// a negative number when a sorts before b, zero when equal, positive otherwise.
type Comparator func(a, b string) int

type Tagged struct {
	model.Record
	Period string
}

func ParseGranularity(value string) (model.Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "y", "year", "yearly", "annual":
		return model.GranularityYearly, nil
	case "q", "quarter", "quarterly":
		return model.GranularityQuarterly, nil
	case "m", "month", "monthly":
		return model.GranularityMonthly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, value)
	}
}

// Tag returns the period label of date: "2024", "2024Q3" or "2024-07".
func Tag(date time.Time, granularity model.Granularity) (string, error) {
	switch granularity {
	case model.GranularityYearly:
		return fmt.Sprintf("%04d", date.Year()), nil
	case model.GranularityQuarterly:
		return fmt.Sprintf("%04dQ%d", date.Year(), quarterOf(date.Month())), nil
	case model.GranularityMonthly:
		return fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month())), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, granularity)
	}
}

func ComparatorFor(granularity model.Granularity) (Comparator, error) {
	switch granularity {
	case model.GranularityYearly, model.GranularityQuarterly, model.GranularityMonthly:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidGranularity, granularity)
	}
	return func(a, b string) int {
		keyA, okA := Key(granularity, a)
		keyB, okB := Key(granularity, b)
		switch {
		case okA && !okB:
			return -1
		case !okA && okB:
			return 1
		case keyA < keyB:
			return -1
		case keyA > keyB:
			return 1
		}
		return strings.Compare(a, b)
	}, nil
}

// Assign tags every record with its period and returns the comparator for
// the granularity alongside.
func Assign(records []model.Record, granularity model.Granularity) ([]Tagged, Comparator, error) {
	compare, err := ComparatorFor(granularity)
	if err != nil {
		return nil, nil, err
	}
	tagged := make([]Tagged, 0, len(records))
	for _, record := range records {
		tag, err := Tag(record.Date, granularity)
		if err != nil {
			return nil, nil, err
		}
		tagged = append(tagged, Tagged{Record: record, Period: tag})
	}
	return tagged, compare, nil
}

func Sort(periods []string, compare Comparator) {
	sort.SliceStable(periods, func(i, j int) bool {
		return compare(periods[i], periods[j]) < 0
	})
}

// Key maps a period tag to an integer that orders chronologically within
// one granularity.
func Key(granularity model.Granularity, period string) (int, bool) {
	switch granularity {
	case model.GranularityMonthly:
		year, month, ok := parseYearMonth(period)
		if !ok {
			return 0, false
		}
		return year*100 + month, true
	case model.GranularityQuarterly:
		year, quarter, ok := parseYearQuarter(period)
		if !ok {
			return 0, false
		}
		return year*10 + quarter, true
	case model.GranularityYearly:
		return parseYear(period)
	default:
		return 0, false
	}
}

// MonthStart truncates t to the first day of its calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func quarterOf(month time.Month) int {
	return (int(month)-1)/3 + 1
}

func parseYearMonth(value string) (int, int, bool) {
	value = strings.TrimSpace(value)
	if len(value) == 6 && isDigits(value) {
		year, _ := strconv.Atoi(value[:4])
		month, _ := strconv.Atoi(value[4:])
		if month >= 1 && month <= 12 {
			return year, month, true
		}
	}

	parts := strings.Split(value, "-")
	if len(parts) == 2 && len(parts[0]) == 4 {
		year, errYear := strconv.Atoi(parts[0])
		month, errMonth := strconv.Atoi(parts[1])
		if errYear == nil && errMonth == nil && month >= 1 && month <= 12 {
			return year, month, true
		}
	}
	return 0, 0, false
}

func parseYearQuarter(value string) (int, int, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	for _, separator := range []string{"-Q", "Q"} {
		if !strings.Contains(value, separator) {
			continue
		}
		parts := strings.Split(value, separator)
		if len(parts) != 2 {
			continue
		}
		year, errYear := strconv.Atoi(parts[0])
		quarter, errQuarter := strconv.Atoi(parts[1])
		if errYear == nil && errQuarter == nil && quarter >= 1 && quarter <= 4 {
			return year, quarter, true
		}
	}
	return 0, 0, false
}

func parseYear(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if len(value) != 4 || !isDigits(value) {
		return 0, false
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return year, true
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
