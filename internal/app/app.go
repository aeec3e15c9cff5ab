package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/manish3089/Token-Generator/internal/api"
	"github.com/manish3089/Token-Generator/internal/cache"
	"github.com/manish3089/Token-Generator/internal/codec"
	"github.com/manish3089/Token-Generator/internal/database"
	"github.com/manish3089/Token-Generator/internal/messaging"
	"github.com/manish3089/Token-Generator/internal/services"
	"github.com/manish3089/Token-Generator/internal/sharekhan"
	"github.com/manish3089/Token-Generator/pkg/config"
	"github.com/sirupsen/logrus"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Core components
	codec      *codec.Codec
	client     *sharekhan.Client
	tokens     cache.TokenStore
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient
	influxDB   *database.InfluxClient

	apiServer *api.Server
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize builds the client and the optional backends. Backends that are
// disabled in the configuration are replaced by in-process stand-ins.
func (a *App) Initialize() error {
	if err := a.initializeClient(); err != nil {
		return fmt.Errorf("failed to initialize Sharekhan client: %w", err)
	}

	if err := a.initializeCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	if err := a.initializeMessaging(); err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	if err := a.initializeDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	return nil
}

// InitializeServer creates the web server on top of Initialize
func (a *App) InitializeServer() error {
	if err := a.Initialize(); err != nil {
		return err
	}

	server, err := api.NewServer(a.cfg, a.logger, a.client, a.tokens, a.publisher())
	if err != nil {
		return fmt.Errorf("failed to initialize API server: %w", err)
	}
	a.apiServer = server
	return nil
}

// Start starts the web server in the background
func (a *App) Start() error {
	if a.apiServer == nil {
		return fmt.Errorf("server not initialized")
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("API server error")
		}
	}()

	a.logger.WithField("login_url", fmt.Sprintf("http://%s/", a.cfg.GetServerAddr())).Info("Open the token generator in a browser")
	return nil
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	a.cancel()

	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("Error stopping API server")
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	if err := a.closeConnections(); err != nil {
		a.logger.WithError(err).Error("Error closing connections")
	}

	a.logger.Info("Application stopped successfully")
	return nil
}

// NewLoader returns a historical loader wired to the configured sinks.
// The InfluxDB writer is attached only when withInflux is set and InfluxDB
// was initialized.
func (a *App) NewLoader(exportDir, baseName string, withInflux bool) *services.HistoricalLoader {
	opts := services.LoaderOptions{
		ExportDir:  exportDir,
		BaseName:   baseName,
		BatchDelay: a.cfg.Sharekhan.RequestInterval,
		Publisher:  a.publisher(),
	}
	if withInflux && a.influxDB != nil {
		opts.Writer = a.influxDB
	}
	return services.NewHistoricalLoader(a.client, opts, a.logger)
}

// GetContext returns the application context
func (a *App) GetContext() context.Context {
	return a.ctx
}

// GetConfig returns the application configuration
func (a *App) GetConfig() *config.Config {
	return a.cfg
}

// GetLogger returns the application logger
func (a *App) GetLogger() *logrus.Logger {
	return a.logger
}

// Client returns the Sharekhan client
func (a *App) Client() *sharekhan.Client {
	return a.client
}

func (a *App) publisher() messaging.Publisher {
	if a.natsClient != nil {
		return a.natsClient
	}
	return messaging.NopPublisher{}
}

// Private initialization methods

func (a *App) initializeClient() error {
	cdc, err := codec.New(codec.NewConfig(a.cfg.Sharekhan.EncryptionKey))
	if err != nil {
		return err
	}
	a.codec = cdc
	a.client = sharekhan.NewClient(&a.cfg.Sharekhan, cdc, a.logger)
	return nil
}

func (a *App) initializeCache() error {
	if !a.cfg.Redis.Enabled {
		a.tokens = cache.NewMemoryStore()
		return nil
	}

	redisClient, err := cache.NewRedisClient(&a.cfg.Redis, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redisCache = redisClient
	a.tokens = redisClient
	return nil
}

func (a *App) initializeMessaging() error {
	if !a.cfg.NATS.Enabled {
		return nil
	}

	natsClient, err := messaging.NewNATSClient(&a.cfg.NATS, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.natsClient = natsClient
	return nil
}

func (a *App) initializeDatabase() error {
	if !a.cfg.InfluxDB.Enabled {
		return nil
	}

	a.influxDB = database.NewInfluxClient(&a.cfg.InfluxDB, a.logger)

	ctx, cancel := context.WithTimeout(a.ctx, a.cfg.InfluxDB.Timeout)
	defer cancel()
	if err := a.influxDB.Health(ctx); err != nil {
		a.influxDB.Close()
		a.influxDB = nil
		return fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	return nil
}

func (a *App) closeConnections() error {
	var errs []error

	if a.influxDB != nil {
		a.influxDB.Close()
	}

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close NATS: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}

	return nil
}

// Close releases backend connections without touching the web server
func (a *App) Close() error {
	a.cancel()
	return a.closeConnections()
}
