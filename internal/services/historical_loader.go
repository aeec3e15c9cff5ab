package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/manish3089/Token-Generator/internal/database"
	"github.com/manish3089/Token-Generator/internal/export"
	"github.com/manish3089/Token-Generator/internal/messaging"
	"github.com/manish3089/Token-Generator/internal/sharekhan"
	"github.com/manish3089/Token-Generator/internal/timeseries"
	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/sirupsen/logrus"
)

// BarSource is the historical side of the Sharekhan client
type BarSource interface {
	Login(ctx context.Context) (*sharekhan.Session, error)
	FetchHistoricalBars(ctx context.Context, sess *sharekhan.Session, req sharekhan.HistoricalRequest) ([]timeseries.RawRow, error)
	Logout(ctx context.Context, sess *sharekhan.Session)
}

var _ BarSource = (*sharekhan.Client)(nil)

// LoaderOptions configures a HistoricalLoader
type LoaderOptions struct {
	ExportDir  string
	BaseName   string
	BatchDelay time.Duration

	// Optional sinks
	Publisher messaging.Publisher
	Writer    database.BarWriter
}

// JobResult describes one fetched and exported series
type JobResult struct {
	Request  sharekhan.HistoricalRequest
	Bars     int
	Issues   []timeseries.DataError
	FilePath string
	Err      error
}

// HistoricalLoader runs a login, fetch, normalize and export cycle
type HistoricalLoader struct {
	source BarSource
	opts   LoaderOptions
	logger *logrus.Entry
	now    func() time.Time
}

// NewHistoricalLoader creates a new historical data loader
func NewHistoricalLoader(source BarSource, opts LoaderOptions, logger *logrus.Logger) *HistoricalLoader {
	if opts.Publisher == nil {
		opts.Publisher = messaging.NopPublisher{}
	}
	if opts.BaseName == "" {
		opts.BaseName = "goldm_5hr_data"
	}

	return &HistoricalLoader{
		source: source,
		opts:   opts,
		logger: logger.WithField("component", "historical-loader"),
		now:    time.Now,
	}
}

// Run logs in once, processes every request in order, and always logs out.
// A failing request is recorded in its JobResult and does not stop the rest;
// a failed login aborts the run.
func (h *HistoricalLoader) Run(ctx context.Context, reqs []sharekhan.HistoricalRequest) ([]JobResult, error) {
	sess, err := h.source.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	defer h.source.Logout(context.Background(), sess)

	results := make([]JobResult, 0, len(reqs))
	for i, req := range reqs {
		if i > 0 && h.opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(h.opts.BatchDelay):
			}
		}

		res := h.load(ctx, sess, req, h.fileBase(req, len(reqs)))
		if res.Err != nil {
			h.logger.WithError(res.Err).WithFields(logrus.Fields{
				"symbol":   req.Symbol,
				"interval": req.Interval,
			}).Error("Failed to load historical data")
		}
		results = append(results, res)
	}

	return results, nil
}

func (h *HistoricalLoader) load(ctx context.Context, sess *sharekhan.Session, req sharekhan.HistoricalRequest, base string) JobResult {
	res := JobResult{Request: req}

	rows, err := h.source.FetchHistoricalBars(ctx, sess, req)
	if err != nil {
		res.Err = err
		return res
	}

	normalized := timeseries.Normalize(rows)
	res.Bars = len(normalized.Bars)
	res.Issues = normalized.Issues
	for _, issue := range normalized.Issues {
		h.logger.WithFields(logrus.Fields{
			"row":    issue.Row,
			"field":  issue.Field,
			"value":  issue.Value,
			"reason": issue.Reason,
		}).Warn("Data quality issue")
	}

	path, err := export.WriteCSV(h.opts.ExportDir, base, normalized.Bars, h.now())
	if errors.Is(err, export.ErrEmptySeries) {
		h.logger.WithField("symbol", req.Symbol).Warn("No data received")
	} else if err != nil {
		res.Err = err
		return res
	}
	res.FilePath = path

	if len(normalized.Bars) == 0 {
		return res
	}

	batch := &models.BarBatch{
		Exchange:  req.Exchange,
		Symbol:    req.Symbol,
		Interval:  req.Interval,
		Bars:      normalized.Bars,
		FetchedAt: h.now().UTC(),
	}
	if err := h.opts.Publisher.PublishBars(batch); err != nil {
		h.logger.WithError(err).Warn("Failed to publish bars")
	}
	if h.opts.Writer != nil {
		if err := h.opts.Writer.WriteBars(ctx, batch); err != nil {
			h.logger.WithError(err).Warn("Failed to write bars to InfluxDB")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"symbol":   req.Symbol,
		"interval": req.Interval,
		"bars":     res.Bars,
		"file":     path,
	}).Info("Historical data exported")
	return res
}

// fileBase keeps the configured name for a single series and qualifies it
// with symbol and interval otherwise, so files from one run never collide.
func (h *HistoricalLoader) fileBase(req sharekhan.HistoricalRequest, jobs int) string {
	if jobs <= 1 {
		return h.opts.BaseName
	}
	return fmt.Sprintf("%s_%s_%s", h.opts.BaseName, req.Symbol, req.Interval)
}
