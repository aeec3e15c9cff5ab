// Package export writes normalized series to disk.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	fileTimestampLayout = "20060102_150405"
	rowTimestampLayout  = "2006-01-02 15:04:05"
)

// ErrEmptySeries is returned when there is nothing to write
var ErrEmptySeries = errors.New("export: no data to save")

// FileName returns {base}_{YYYYMMDD_HHMMSS}.csv for now
func FileName(base string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", base, now.Format(fileTimestampLayout))
}

// WriteCSV writes bars to dir/FileName(base, now) and returns the path.
// Missing values are written as empty cells and datetimes are written in
// UTC. No file is left behind when writing fails.
func WriteCSV(dir, base string, bars []models.Bar, now time.Time) (string, error) {
	if len(bars) == 0 {
		return "", ErrEmptySeries
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, FileName(base, now))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := writeRecords(file, bars); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	return path, nil
}

func writeRecords(out io.Writer, bars []models.Bar) error {
	w := csv.NewWriter(out)
	if err := w.Write(models.BarColumns); err != nil {
		return err
	}
	for _, bar := range bars {
		if err := w.Write(record(bar)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func record(bar models.Bar) []string {
	volume := ""
	if bar.Volume.Valid {
		volume = strconv.FormatInt(bar.Volume.Int64, 10)
	}
	return []string{
		bar.Datetime.UTC().Format(rowTimestampLayout),
		decimalCell(bar.Open),
		decimalCell(bar.High),
		decimalCell(bar.Low),
		decimalCell(bar.Close),
		volume,
	}
}

func decimalCell(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
