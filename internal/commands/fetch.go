package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/manish3089/Token-Generator/internal/app"
	"github.com/manish3089/Token-Generator/internal/sharekhan"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	fetchExchange  string
	fetchSymbol    string
	fetchIntervals []string
	fetchDays      int
	fetchFrom      string
	fetchTo        string
	fetchContracts bool
	fetchOutput    string
	fetchDir       string
	fetchInflux    bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download historical bars and export them to CSV",
	Long: `Log in with SHAREKHAN_API_KEY, SHAREKHAN_SECRET_KEY and SHAREKHAN_USER_ID,
download historical OHLCV bars, normalize them and write a timestamped CSV.

Bars are also published to NATS when NATS_ENABLED is set, and written to
InfluxDB with --influx when INFLUXDB_ENABLED is set.

Examples:
  # Last 30 days of 5-hour GOLDM bars
  token-generator fetch

  # All GOLDM contracts, daily and 5-hour bars
  token-generator fetch --contracts --interval 1D --interval 5H

  # Fixed range into a directory
  token-generator fetch --from 2024-01-01 --to 2024-02-01 --dir ./data`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchExchange, "exchange", "MCX", "Exchange code")
	fetchCmd.Flags().StringVar(&fetchSymbol, "symbol", "GOLDM", "Scrip code")
	fetchCmd.Flags().StringSliceVar(&fetchIntervals, "interval", []string{"5H"}, "Bar interval (repeatable)")
	fetchCmd.Flags().IntVar(&fetchDays, "days", 30, "Number of days to fetch when --from/--to are not set")
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "Start date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "End date (YYYY-MM-DD)")
	fetchCmd.Flags().BoolVar(&fetchContracts, "contracts", false, "Fetch current, next and far GOLDM contracts instead of --symbol")
	fetchCmd.Flags().StringVar(&fetchOutput, "output", "", "CSV base name (overrides EXPORT_BASE_NAME)")
	fetchCmd.Flags().StringVar(&fetchDir, "dir", "", "Output directory (overrides EXPORT_DIR)")
	fetchCmd.Flags().BoolVar(&fetchInflux, "influx", false, "Also write bars to InfluxDB")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if (fetchFrom == "") != (fetchTo == "") {
		return fmt.Errorf("--from and --to must be given together")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Sharekhan.HasCredentials() {
		return fmt.Errorf("SHAREKHAN_API_KEY, SHAREKHAN_SECRET_KEY and SHAREKHAN_USER_ID must be set")
	}
	if fetchInflux && !cfg.InfluxDB.Enabled {
		return fmt.Errorf("--influx requires INFLUXDB_ENABLED=true")
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	dir := cfg.Export.Dir
	if fetchDir != "" {
		dir = fetchDir
	}
	base := cfg.Export.BaseName
	if fetchOutput != "" {
		base = fetchOutput
	}

	application := app.New(cfg, log)
	if err := application.Initialize(); err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reqs := buildRequests()
	log.WithFields(logrus.Fields{
		"exchange":  fetchExchange,
		"series":    len(reqs),
		"intervals": strings.Join(fetchIntervals, ","),
	}).Info("Starting historical download")

	results, err := application.NewLoader(dir, base, fetchInflux).Run(ctx, reqs)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	failed := 0
	for _, res := range results {
		fields := logrus.Fields{
			"symbol":   res.Request.Symbol,
			"interval": res.Request.Interval,
			"bars":     res.Bars,
			"issues":   len(res.Issues),
		}
		if res.Err != nil {
			failed++
			log.WithFields(fields).WithError(res.Err).Error("Series failed")
			continue
		}
		if res.FilePath != "" {
			fields["file"] = res.FilePath
		}
		log.WithFields(fields).Info("Series summary")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d series failed", failed, len(results))
	}
	return nil
}

func buildRequests() []sharekhan.HistoricalRequest {
	symbols := []string{fetchSymbol}
	if fetchContracts {
		codes := sharekhan.ScripCodes()
		keys := make([]string, 0, len(codes))
		for k := range codes {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		symbols = symbols[:0]
		for _, k := range keys {
			symbols = append(symbols, codes[k])
		}
	}

	reqs := make([]sharekhan.HistoricalRequest, 0, len(symbols)*len(fetchIntervals))
	for _, symbol := range symbols {
		for _, interval := range fetchIntervals {
			reqs = append(reqs, sharekhan.HistoricalRequest{
				Exchange: fetchExchange,
				Symbol:   symbol,
				Interval: interval,
				From:     fetchFrom,
				To:       fetchTo,
				Days:     fetchDays,
			})
		}
	}
	return reqs
}
