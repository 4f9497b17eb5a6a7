package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shareofsearch/internal/model"
	"shareofsearch/internal/period"
	"shareofsearch/internal/sos"
)

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func multiRecords() []model.Record {
	return []model.Record{
		{Keyword: "rapha", Country: "Slovakia", LocationCode: 2703, Date: month(2023, time.January), SearchVolume: 100},
		{Keyword: "rapha", Country: "Slovakia", LocationCode: 2703, Date: month(2024, time.January), SearchVolume: 150},
		{Keyword: "rapha", Country: "Czechia", LocationCode: 2203, Date: month(2023, time.January), SearchVolume: 300},
		{Keyword: "maap", Country: "Slovakia", LocationCode: 2703, Date: month(2023, time.January), SearchVolume: 0},
		{Keyword: "maap", Country: "Czechia", LocationCode: 2203, Date: month(2024, time.January), SearchVolume: 40},
	}
}

func TestWriteRawCSV(t *testing.T) {
	records := []model.Record{
		{Keyword: "rapha", Date: month(2024, time.February), SearchVolume: 20},
		{Keyword: "maap", Date: month(2024, time.January), SearchVolume: 1000},
		{Keyword: "rapha", Date: month(2024, time.January), SearchVolume: 10},
	}

	t.Run("single country", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteRawCSV(&buf, records, false))
		assert.Equal(t, "Keyword,Date,Search Volume\n"+
			"maap,2024-01-01,1000\n"+
			"rapha,2024-01-01,10\n"+
			"rapha,2024-02-01,20\n", buf.String())
		assert.Equal(t, "rapha", records[0].Keyword)
	})

	t.Run("multi country", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteRawCSV(&buf, multiRecords(), true))
		assert.Equal(t, "Keyword,Country,Location Code,Date,Search Volume\n"+
			"maap,Czechia,2203,2024-01-01,40\n"+
			"maap,Slovakia,2703,2023-01-01,0\n"+
			"rapha,Czechia,2203,2023-01-01,300\n"+
			"rapha,Slovakia,2703,2023-01-01,100\n"+
			"rapha,Slovakia,2703,2024-01-01,150\n", buf.String())
	})

	t.Run("keywords with commas are quoted", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteRawCSV(&buf, []model.Record{
			{Keyword: "pas normal studios, bib", Date: month(2024, time.March), SearchVolume: 5},
		}, false))
		assert.Equal(t, "Keyword,Date,Search Volume\n\"pas normal studios, bib\",2024-03-01,5\n", buf.String())
	})

	t.Run("empty input writes header only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteRawCSV(&buf, nil, true))
		assert.Equal(t, "Keyword,Country,Location Code,Date,Search Volume\n", buf.String())
	})
}

func TestReadRawCSV(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteRawCSV(&buf, multiRecords(), true))

		records, err := ReadRawCSV(&buf)
		require.NoError(t, err)
		require.Len(t, records, 5)
		assert.Equal(t, model.Record{
			Keyword: "maap", Country: "Czechia", LocationCode: 2203,
			Date: month(2024, time.January), SearchVolume: 40,
		}, records[0])
	})

	t.Run("skips bad rows", func(t *testing.T) {
		records, err := ReadRawCSV(strings.NewReader("Keyword,Date,Search Volume\n" +
			"rapha,2024-01-01,10\n" +
			"rapha,not-a-date,10\n" +
			"rapha,2024-02-01,\n"))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Empty(t, records[0].Country)
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := ReadRawCSV(strings.NewReader("Keyword,Date\nrapha,2024-01-01\n"))
		assert.ErrorIs(t, err, ErrMissingColumn)
	})
}

func TestBuildSingle(t *testing.T) {
	records := []model.Record{
		{Keyword: "X", Date: month(2023, time.January), SearchVolume: 100},
		{Keyword: "X", Date: month(2023, time.February), SearchVolume: 200},
		{Keyword: "Y", Date: month(2023, time.January), SearchVolume: 50},
		{Keyword: "Y", Date: month(2023, time.February), SearchVolume: 50},
		{Keyword: "X", Date: month(2024, time.January), SearchVolume: 600},
		{Keyword: "Y", Date: month(2024, time.January), SearchVolume: 0},
	}

	report, err := BuildSingle(records, model.GranularityYearly)
	require.NoError(t, err)
	assert.Equal(t, KindSingle, report.Kind)
	assert.Equal(t, []string{"X", "Y"}, report.Ranking)
	require.Len(t, report.Shares, 4)
	assert.InDelta(t, 75.0, report.Shares[0].SharePercent, 1e-9)
	assert.InDelta(t, 100.0, report.Shares[2].SharePercent, 1e-9)
	require.Len(t, report.SegmentAverage, 2)
	assert.InDelta(t, 200.0, report.SegmentAverage[0].AverageVolume, 1e-9)
	assert.InDelta(t, 600.0, report.SegmentAverage[1].AverageVolume, 1e-9)

	assert.Equal(t, []string{"2023", "2024"}, report.Heatmap.Periods)
	require.Len(t, report.Heatmap.Rows, 2)
	assert.Equal(t, "X", report.Heatmap.Rows[0].Entity)
	assert.InDelta(t, 100.0, *report.Heatmap.Rows[0].Values[1], 1e-9)
	assert.InDelta(t, -100.0, *report.Heatmap.Rows[1].Values[1], 1e-9)

	tables := report.Tables()
	require.Len(t, tables, 5)
	assert.Equal(t, []string{"Period", "Keyword", "Search Volume", "Total Market Volume", "Share_Percent"}, tables[0].Columns)
	assert.Equal(t, []string{"2023", "X", "300", "400", "75.0%"}, tables[0].Rows[0])
	assert.Equal(t, []string{"Keyword", "2023", "2024"}, tables[4].Columns)
	assert.Equal(t, []string{"X", "-", "100%"}, tables[4].Rows[0])
}

func TestBuildSingle_InvalidGranularity(t *testing.T) {
	_, err := BuildSingle(nil, model.Granularity("W"))
	assert.ErrorIs(t, err, period.ErrInvalidGranularity)
}

func TestBuildSingle_EmptyKeepsHeaders(t *testing.T) {
	report, err := BuildSingle(nil, model.GranularityMonthly)
	require.NoError(t, err)
	for _, table := range report.Tables() {
		assert.True(t, table.Empty(), table.Title)
		assert.NotEmpty(t, table.Columns, table.Title)
	}
	assert.Equal(t, []string{"Period", "Average Total Volume"}, report.Tables()[1].Columns)
}

func TestBuildMulti(t *testing.T) {
	report, err := BuildMulti(multiRecords(), model.GranularityYearly, MultiOptions{
		Selection:        sos.Selection{Keywords: []string{"rapha", "maap"}, Countries: []string{"Slovakia"}},
		SegmentCountries: []string{"Czechia"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindMulti, report.Kind)

	// rapha sums both countries in the totals.
	require.NotEmpty(t, report.Shares)
	assert.Equal(t, model.ShareResult{
		Period: "2023", Entity: "rapha", Volume: 400, TotalMarketVolume: 400, SharePercent: 100,
	}, report.Shares[1])

	assert.Equal(t, []model.AverageVolumeResult{
		{Period: "2023", Entity: "maap", AverageVolume: 0},
		{Period: "2023", Entity: "rapha", AverageVolume: 100},
		{Period: "2024", Entity: "rapha", AverageVolume: 150},
	}, report.BrandAverage)
	assert.Equal(t, []model.AverageVolumeResult{
		{Period: "2023", Entity: "Slovakia", AverageVolume: 100},
		{Period: "2024", Entity: "Slovakia", AverageVolume: 150},
	}, report.CountryAverage)
	assert.Equal(t, []model.AverageVolumeResult{
		{Period: "2023", AverageVolume: 300},
		{Period: "2024", AverageVolume: 40},
	}, report.CountrySegment)

	tables := report.Tables()
	require.Len(t, tables, 9)
	assert.Equal(t, "Country", tables[6].Columns[1])
}

func TestBuildMulti_EmptySelection(t *testing.T) {
	report, err := BuildMulti(multiRecords(), model.GranularityQuarterly, MultiOptions{
		Selection: sos.Selection{Countries: []string{"Slovakia"}},
	})
	require.NoError(t, err)
	assert.Empty(t, report.BrandAverage)
	assert.Empty(t, report.CountryAverage)
	assert.Empty(t, report.BrandShare)
	assert.Empty(t, report.CountrySegment)
	assert.NotEmpty(t, report.Shares)
}

func TestWriteJSON(t *testing.T) {
	report, err := BuildSingle([]model.Record{
		{Keyword: "X", Date: month(2023, time.January), SearchVolume: 0},
		{Keyword: "X", Date: month(2024, time.January), SearchVolume: 10},
	}, model.GranularityYearly)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "report.json")
	require.NoError(t, WriteJSON(path, NewFile(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), report)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		GeneratedAt string `json:"generated_at"`
		Reports     []struct {
			Kind   string  `json:"kind"`
			Tables []Table `json:"tables"`
		} `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2024-05-01T12:00:00Z", decoded.GeneratedAt)
	require.Len(t, decoded.Reports, 1)
	assert.Equal(t, "single", decoded.Reports[0].Kind)
	heatmap := decoded.Reports[0].Tables[4]
	assert.Equal(t, [][]string{{"X", "-", "Inf%"}}, heatmap.Rows)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	table := ShareTable("Share", sos.ByKeyword, []model.ShareResult{
		{Period: "2023", Entity: "rapha", Volume: 1200, TotalMarketVolume: 1600, SharePercent: 75},
	})
	require.NoError(t, Render(&buf, table))
	assert.Contains(t, buf.String(), "rapha")
	assert.Contains(t, buf.String(), "1,200")
	assert.Contains(t, buf.String(), "75.0%")
}
