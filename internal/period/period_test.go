package period

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shareofsearch/internal/model"
)

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestTag(t *testing.T) {
	tests := []struct {
		name        string
		date        time.Time
		granularity model.Granularity
		want        string
	}{
		{"yearly", month(2024, time.March), model.GranularityYearly, "2024"},
		{"quarter one", month(2024, time.March), model.GranularityQuarterly, "2024Q1"},
		{"quarter three", month(2024, time.July), model.GranularityQuarterly, "2024Q3"},
		{"quarter four", month(2023, time.December), model.GranularityQuarterly, "2023Q4"},
		{"monthly pads month", month(2024, time.February), model.GranularityMonthly, "2024-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tag(tt.date, tt.granularity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTag_InvalidGranularity(t *testing.T) {
	_, err := Tag(month(2024, time.January), model.Granularity("W"))
	assert.True(t, errors.Is(err, ErrInvalidGranularity))

	_, err = ComparatorFor(model.Granularity(""))
	assert.ErrorIs(t, err, ErrInvalidGranularity)

	_, _, err = Assign([]model.Record{{Keyword: "x", Date: month(2024, time.January)}}, "weekly")
	assert.ErrorIs(t, err, ErrInvalidGranularity)
}

func TestParseGranularity(t *testing.T) {
	for input, want := range map[string]model.Granularity{
		"yearly":    model.GranularityYearly,
		"Y":         model.GranularityYearly,
		"Quarterly": model.GranularityQuarterly,
		" q ":       model.GranularityQuarterly,
		"monthly":   model.GranularityMonthly,
		"M":         model.GranularityMonthly,
	} {
		got, err := ParseGranularity(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseGranularity("fortnightly")
	assert.ErrorIs(t, err, ErrInvalidGranularity)
}

func TestComparator_Chronological(t *testing.T) {
	t.Run("quarters sort by year before quarter", func(t *testing.T) {
		compare, err := ComparatorFor(model.GranularityQuarterly)
		require.NoError(t, err)
		periods := []string{"2024Q1", "2023Q4", "2024Q3", "2023Q1", "2024Q2"}
		Sort(periods, compare)
		assert.Equal(t, []string{"2023Q1", "2023Q4", "2024Q1", "2024Q2", "2024Q3"}, periods)
	})

	t.Run("years sort numerically", func(t *testing.T) {
		compare, err := ComparatorFor(model.GranularityYearly)
		require.NoError(t, err)
		periods := []string{"2025", "2019", "2022"}
		Sort(periods, compare)
		assert.Equal(t, []string{"2019", "2022", "2025"}, periods)
	})

	t.Run("months sort by calendar order", func(t *testing.T) {
		compare, err := ComparatorFor(model.GranularityMonthly)
		require.NoError(t, err)
		periods := []string{"2024-10", "2024-02", "2023-12"}
		Sort(periods, compare)
		assert.Equal(t, []string{"2023-12", "2024-02", "2024-10"}, periods)
		assert.Zero(t, compare("2024-02", "2024-02"))
	})

	t.Run("unparseable tags sort last", func(t *testing.T) {
		compare, err := ComparatorFor(model.GranularityYearly)
		require.NoError(t, err)
		periods := []string{"n/a", "2024", "2020"}
		Sort(periods, compare)
		assert.Equal(t, []string{"2020", "2024", "n/a"}, periods)
	})
}

func TestAssign(t *testing.T) {
	records := []model.Record{
		{Keyword: "x", Date: month(2023, time.January), SearchVolume: 100},
		{Keyword: "x", Date: month(2023, time.May), SearchVolume: 200},
	}
	tagged, compare, err := Assign(records, model.GranularityQuarterly)
	require.NoError(t, err)
	require.Len(t, tagged, 2)
	assert.Equal(t, "2023Q1", tagged[0].Period)
	assert.Equal(t, "2023Q2", tagged[1].Period)
	assert.Equal(t, int64(200), tagged[1].SearchVolume)
	assert.Negative(t, compare(tagged[0].Period, tagged[1].Period))
}

func TestKey(t *testing.T) {
	key, ok := Key(model.GranularityQuarterly, "2024-Q3")
	assert.True(t, ok)
	assert.Equal(t, 20243, key)

	_, ok = Key(model.GranularityQuarterly, "2024Q9")
	assert.False(t, ok)

	key, ok = Key(model.GranularityMonthly, "202407")
	assert.True(t, ok)
	assert.Equal(t, 202407, key)
}

func TestMonthStart(t *testing.T) {
	got := MonthStart(time.Date(2024, time.August, 17, 13, 5, 0, 0, time.UTC))
	assert.Equal(t, month(2024, time.August), got)
}
