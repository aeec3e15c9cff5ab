package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents one normalized OHLCV row. Price fields and volume carry a
// validity flag so that unparseable source values survive as missing values
// instead of failing the whole series.
type Bar struct {
	Datetime time.Time           `json:"datetime"`
	Open     decimal.NullDecimal `json:"open"`
	High     decimal.NullDecimal `json:"high"`
	Low      decimal.NullDecimal `json:"low"`
	Close    decimal.NullDecimal `json:"close"`
	Volume   sql.NullInt64       `json:"volume"`
}

// BarColumns is the canonical column order for exported series
var BarColumns = []string{"datetime", "open", "high", "low", "close", "volume"}

// BarBatch is a normalized series for one instrument and interval
type BarBatch struct {
	Exchange  string    `json:"exchange"`
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	Bars      []Bar     `json:"bars"`
	FetchedAt time.Time `json:"fetched_at"`
}
