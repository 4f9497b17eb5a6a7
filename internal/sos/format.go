package sos

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

func FormatShare(percent float64) string {
	return fmt.Sprintf("%.1f%%", finiteOrZero(percent))
}

// FormatGrowth keeps the undefined and infinite cases distinguishable from
// a zero change.
func FormatGrowth(value *float64) string {
	if value == nil || math.IsNaN(*value) {
		return "-"
	}
	switch {
	case math.IsInf(*value, 1):
		return "Inf%"
	case math.IsInf(*value, -1):
		return "-Inf%"
	}
	return fmt.Sprintf("%.0f%%", *value)
}

// FormatVolume renders a count rounded to a whole number with thousands
// separators.
func FormatVolume(volume float64) string {
	return humanize.Comma(int64(math.Round(finiteOrZero(volume))))
}
