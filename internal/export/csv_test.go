package export

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "goldm_5hr_data_20240301_090507.csv", FileName("goldm_5hr_data", now))
}

func TestWriteCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	now := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)

	bars := []models.Bar{
		{
			Datetime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Open:     decimal.NewNullDecimal(decimal.RequireFromString("61800")),
			High:     decimal.NewNullDecimal(decimal.RequireFromString("62000.5")),
			Low:      decimal.NewNullDecimal(decimal.RequireFromString("61750")),
			Close:    decimal.NewNullDecimal(decimal.RequireFromString("61990")),
			Volume:   sql.NullInt64{Int64: 80, Valid: true},
		},
		{
			Datetime: time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
			Close:    decimal.NewNullDecimal(decimal.RequireFromString("62050")),
		},
	}

	path, err := WriteCSV(dir, "goldm", bars, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "goldm_20240301_090507.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"datetime", "open", "high", "low", "close", "volume"},
		{"2024-03-01 09:00:00", "61800", "62000.5", "61750", "61990", "80"},
		{"2024-03-01 14:00:00", "", "", "", "62050", ""},
	}, records)
}

func TestWriteCSV_Empty(t *testing.T) {
	_, err := WriteCSV(t.TempDir(), "goldm", nil, time.Now())
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestWriteCSV_DatetimesInUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	bars := []models.Bar{
		{Datetime: time.Date(2024, 3, 1, 14, 30, 0, 0, ist)},
		{Datetime: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	path, err := WriteCSV(t.TempDir(), "goldm", bars, time.Now())
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "2024-03-01 09:00:00,")
	assert.Contains(t, string(content), "2024-03-01 10:00:00,")
	assert.NotContains(t, string(content), "14:30:00")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteRecords_PropagatesWriteErrors(t *testing.T) {
	bars := []models.Bar{{Datetime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}}
	assert.EqualError(t, writeRecords(failingWriter{}, bars), "disk full")
}
