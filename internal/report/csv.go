package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"shareofsearch/internal/model"
)

const dateLayout = "2006-01-02"

// ErrMissingColumn is returned by ReadRawCSV when a required header is absent.
var ErrMissingColumn = errors.New("missing csv column")

// RawColumns returns the export header. Multi-country exports carry the
// country and location code between the keyword and the date.
func RawColumns(withCountry bool) []string {
	if withCountry {
		return []string{
			model.ColumnKeyword,
			model.ColumnCountry,
			model.ColumnLocationCode,
			model.ColumnDate,
			model.ColumnSearchVolume,
		}
	}
	return []string{model.ColumnKeyword, model.ColumnDate, model.ColumnSearchVolume}
}

// WriteRawCSV writes monthly records sorted by keyword, country (when
// withCountry is set) and date. The input slice is not modified.
func WriteRawCSV(w io.Writer, records []model.Record, withCountry bool) error {
	sorted := append([]model.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Keyword != b.Keyword {
			return a.Keyword < b.Keyword
		}
		if withCountry && a.Country != b.Country {
			return a.Country < b.Country
		}
		return a.Date.Before(b.Date)
	})

	writer := csv.NewWriter(w)
	if err := writer.Write(RawColumns(withCountry)); err != nil {
		return err
	}
	for _, record := range sorted {
		row := make([]string, 0, 5)
		row = append(row, record.Keyword)
		if withCountry {
			row = append(row, record.Country, strconv.Itoa(record.LocationCode))
		}
		row = append(row,
			record.Date.UTC().Format(dateLayout),
			strconv.FormatInt(record.SearchVolume, 10),
		)
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadRawCSV parses a file produced by WriteRawCSV. The country columns are
// optional. Rows with an unparseable date or volume are skipped.
func ReadRawCSV(r io.Reader) ([]model.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv headers: %w", err)
	}
	index := make(map[string]int, len(headers))
	for i, header := range headers {
		index[strings.TrimSpace(header)] = i
	}
	for _, required := range []string{model.ColumnKeyword, model.ColumnDate, model.ColumnSearchVolume} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	field := func(row []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]model.Record, 0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		date, err := time.Parse(dateLayout, field(row, model.ColumnDate))
		if err != nil {
			continue
		}
		volume, err := strconv.ParseInt(field(row, model.ColumnSearchVolume), 10, 64)
		if err != nil {
			continue
		}
		record := model.Record{
			Keyword:      field(row, model.ColumnKeyword),
			Date:         date,
			SearchVolume: volume,
			Country:      field(row, model.ColumnCountry),
		}
		if code := field(row, model.ColumnLocationCode); code != "" {
			record.LocationCode, _ = strconv.Atoi(code)
		}
		records = append(records, record)
	}
	return records, nil
}
