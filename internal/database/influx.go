package database

import (
	"context"
	"fmt"
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/manish3089/Token-Generator/pkg/config"
	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/sirupsen/logrus"
)

// BarWriter persists normalized bar batches
type BarWriter interface {
	WriteBars(ctx context.Context, batch *models.BarBatch) error
	Close()
}

var _ BarWriter = (*InfluxClient)(nil)

// InfluxClient handles InfluxDB time-series operations
type InfluxClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *logrus.Entry
}

// NewInfluxClient creates a new InfluxDB client
func NewInfluxClient(cfg *config.InfluxConfig, logger *logrus.Logger) *InfluxClient {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds())).
			SetLogLevel(0),
	)

	return &InfluxClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   logger.WithField("component", "influxdb"),
	}
}

// Close closes the InfluxDB client
func (ic *InfluxClient) Close() {
	ic.client.Close()
}

// Health checks InfluxDB health
func (ic *InfluxClient) Health(ctx context.Context) error {
	health, err := ic.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influxdb health check failed: %s", msg)
	}

	return nil
}

// WriteBars writes a batch in a single blocking request
func (ic *InfluxClient) WriteBars(ctx context.Context, batch *models.BarBatch) error {
	points := BarPoints(batch)
	if len(points) == 0 {
		return nil
	}

	if err := ic.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write bars batch (%d points): %w", len(points), err)
	}

	ic.logger.WithFields(logrus.Fields{
		"symbol":   batch.Symbol,
		"interval": batch.Interval,
		"points":   len(points),
	}).Info("Wrote bars to InfluxDB")
	return nil
}

// BarPoints converts a batch into points on measurement ohlcv_{interval}.
// Missing values are left out of the point's fields; bars with no fields at
// all are skipped.
func BarPoints(batch *models.BarBatch) []*write.Point {
	measurement := "ohlcv_" + strings.ToLower(batch.Interval)
	tags := map[string]string{
		"exchange": batch.Exchange,
		"symbol":   batch.Symbol,
	}

	points := make([]*write.Point, 0, len(batch.Bars))
	for _, bar := range batch.Bars {
		fields := make(map[string]interface{}, 5)
		for name, v := range map[string]struct {
			valid bool
			value float64
		}{
			"open":  {bar.Open.Valid, bar.Open.Decimal.InexactFloat64()},
			"high":  {bar.High.Valid, bar.High.Decimal.InexactFloat64()},
			"low":   {bar.Low.Valid, bar.Low.Decimal.InexactFloat64()},
			"close": {bar.Close.Valid, bar.Close.Decimal.InexactFloat64()},
		} {
			if v.valid {
				fields[name] = v.value
			}
		}
		if bar.Volume.Valid {
			fields["volume"] = bar.Volume.Int64
		}
		if len(fields) == 0 {
			continue
		}

		points = append(points, influxdb2.NewPoint(measurement, tags, fields, bar.Datetime))
	}

	return points
}
