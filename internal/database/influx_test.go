package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarPoints(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	batch := &models.BarBatch{
		Exchange: "MCX",
		Symbol:   "GOLDM",
		Interval: "5H",
		Bars: []models.Bar{
			{
				Datetime: ts,
				Open:     decimal.NewNullDecimal(decimal.RequireFromString("61800")),
				Close:    decimal.NewNullDecimal(decimal.RequireFromString("61990.5")),
				Volume:   sql.NullInt64{Int64: 80, Valid: true},
			},
			{Datetime: ts.Add(5 * time.Hour)},
		},
	}

	points := BarPoints(batch)
	require.Len(t, points, 1, "bars without any values are skipped")

	line := write.PointToLineProtocol(points[0], time.Second)
	assert.Contains(t, line, "ohlcv_5h,exchange=MCX,symbol=GOLDM ")
	assert.Contains(t, line, "open=61800")
	assert.Contains(t, line, "close=61990.5")
	assert.Contains(t, line, "volume=80i")
	assert.NotContains(t, line, "high=")
	assert.Contains(t, line, " 1709283600")
}

func TestBarPoints_Empty(t *testing.T) {
	assert.Empty(t, BarPoints(&models.BarBatch{Interval: "1D"}))
}
