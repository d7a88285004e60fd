package marketdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"pricecast/internal/errs"
)

const dateLayout = "2006-01-02"

// SaveCSV writes the series to a Date,Close cache file. Values keep
// full float precision so a reload reproduces the series exactly.
func (s PriceSeries) SaveCSV(path string) error {
	if len(s) == 0 {
		return errs.InvalidInput("series", "empty series")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Date", "Close"}); err != nil {
		return fmt.Errorf("write cache header: %w", err)
	}
	for _, p := range s {
		record := []string{
			p.Date.Format(dateLayout),
			strconv.FormatFloat(p.Close, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write cache record %s: %w", record[0], err)
		}
	}
	return nil
}

// LoadCSV reads a Date,Close cache file back into a PriceSeries. Column
// order follows the header; rows with unparseable dates or non-positive
// closes are skipped. The result is sorted ascending and validated.
func LoadCSV(path string) (PriceSeries, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read cache header: %w", err)
	}

	dateIdx, closeIdx := -1, -1
	for i, col := range header {
		switch col {
		case "Date":
			dateIdx = i
		case "Close", "ClosePrice":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, errs.InvalidInputf("cache", "missing Date/Close columns in %s", path)
	}

	var series PriceSeries
	for {
		record, err := reader.Read()
		if err != nil {
			break // EOF or malformed remainder
		}
		if len(record) <= dateIdx || len(record) <= closeIdx {
			continue
		}
		date, err := time.Parse(dateLayout, record[dateIdx])
		if err != nil {
			continue
		}
		close, err := strconv.ParseFloat(record[closeIdx], 64)
		if err != nil || close <= 0 {
			continue
		}
		series = append(series, PricePoint{Date: DateOnly(date), Close: close})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("cached series: %w", err)
	}
	return series, nil
}

// CacheFresh reports whether the cache file exists and was modified
// within ttl. A non-positive ttl disables the cache.
func CacheFresh(path string, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < ttl
}
