package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"cryptoPulse/config"
	"cryptoPulse/internal/adapters/binanceclient"
	"cryptoPulse/internal/adapters/httpapi"
	"cryptoPulse/internal/adapters/logger"
	"cryptoPulse/internal/adapters/sqlite"
	"cryptoPulse/internal/app"
	"cryptoPulse/internal/indicators"
	"cryptoPulse/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(cfg.LogLevel)
	defer appLogger.Sync()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	// 4. Initialize Candle Archive (optional)
	var archive ports.CandleArchive
	if cfg.ArchiveDBPath != "" {
		sqliteArchive, err := sqlite.NewArchive(sqlite.Config{
			DBPath: cfg.ArchiveDBPath,
			Logger: appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize candle archive")
			log.Fatalf("FATAL: Failed to initialize candle archive: %v", err)
		}
		defer func() {
			if err := sqliteArchive.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing candle archive")
			}
		}()
		archive = sqliteArchive
		appLogger.Info(context.Background(), "Candle archive initialized", map[string]interface{}{"path": cfg.ArchiveDBPath})
	}

	// 5. Initialize the Stream Registry
	registry, err := app.NewRegistry(app.RegistryConfig{
		Timeframes: cfg.Timeframes,
		Symbols:    cfg.Symbols,
		MaxSymbols: cfg.MaxSymbols,
		WindowSize: cfg.WindowSize,
		Indicators: indicators.Config{
			EMA12:      cfg.EMAPeriods[0],
			EMA26:      cfg.EMAPeriods[1],
			EMA50:      cfg.EMAPeriods[2],
			EMA100:     cfg.EMAPeriods[3],
			EMA200:     cfg.EMAPeriods[4],
			MACDFast:   cfg.MACDFast,
			MACDSlow:   cfg.MACDSlow,
			MACDSignal: cfg.MACDSignal,
			RSI:        cfg.RSIPeriod,
		},
		BatchSize:        cfg.BatchSize,
		StreamBaseURL:    cfg.StreamBaseURL,
		BackoffMin:       cfg.BackoffMin,
		BackoffMax:       cfg.BackoffMax,
		KeepAlive:        cfg.KeepAlive,
		SubscriberBuffer: cfg.SubscriberBuffer,
		ForwardPartials:  cfg.ForwardPartials,
		Provider:         binanceClient,
		Archive:          archive,
		Logger:           appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize stream registry")
		log.Fatalf("FATAL: Failed to initialize stream registry: %v", err)
	}
	defer registry.Close()
	appLogger.Info(context.Background(), "Stream registry initialized", map[string]interface{}{
		"timeframes": cfg.Timeframes, "maxSymbols": cfg.MaxSymbols,
	})

	// 6. Serve HTTP until interrupted
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLogger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	server := httpapi.New(httpapi.Config{
		Registry: registry,
		Logger:   appLogger,
	})
	if err := server.Run(ctx, cfg.HTTPAddr); err != nil {
		appLogger.Error(ctx, err, "HTTP server exited with error")
		log.Fatalf("FATAL: HTTP server exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
