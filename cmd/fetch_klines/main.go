// fetch_klines downloads historical candles for one symbol and writes them to
// a CSV file, optionally mirroring them into the local candle archive so a
// fresh deployment can seed without hammering the REST API.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cryptoPulse/config"
	"cryptoPulse/internal/adapters/binanceclient"
	"cryptoPulse/internal/adapters/logger"
	"cryptoPulse/internal/adapters/sqlite"
	"cryptoPulse/internal/domain"
)

func main() {
	symbol := flag.String("symbol", "ETHUSDT", "symbol to fetch")
	interval := flag.String("interval", "1h", "kline interval")
	months := flag.Int("months", 3, "how many months of history to fetch")
	outDir := flag.String("out", "data", "output directory for the CSV file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(cfg.LogLevel)
	defer appLogger.Sync()

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

	end := time.Now()
	start := end.AddDate(0, -*months, 0)

	fmt.Printf("Fetching klines for %s %s from %s to %s...\n", *symbol, *interval, start, end)
	klines, err := binanceClient.GetKlinesRange(context.Background(), *symbol, *interval, start, end)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error fetching klines")
		log.Fatalf("Error fetching klines: %v", err)
	}
	appLogger.Info(context.Background(), "Fetched klines", map[string]interface{}{"count": len(klines)})

	filename := filepath.Join(*outDir, fmt.Sprintf("%s_%s_%s_to_%s.csv",
		*symbol, *interval, start.Format("20060102"), end.Format("20060102")))
	if err := writeKlinesToCSV(klines, filename); err != nil {
		appLogger.Error(context.Background(), err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(context.Background(), "Saved CSV", map[string]interface{}{"filename": filename})

	// 4. Mirror into the archive when one is configured
	if cfg.ArchiveDBPath != "" {
		archive, err := sqlite.NewArchive(sqlite.Config{DBPath: cfg.ArchiveDBPath, Logger: appLogger})
		if err != nil {
			appLogger.Error(context.Background(), err, "Error opening candle archive")
			log.Fatalf("Error opening candle archive: %v", err)
		}
		defer archive.Close()

		stored := 0
		for _, k := range klines {
			if !k.IsFinal {
				continue
			}
			if err := archive.StoreKline(context.Background(), k); err != nil {
				appLogger.Error(context.Background(), err, "Error archiving kline")
				log.Fatalf("Error archiving kline: %v", err)
			}
			stored++
		}
		appLogger.Info(context.Background(), "Archived klines", map[string]interface{}{"count": stored})
	}
}

func writeKlinesToCSV(klines []*domain.Kline, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"})

	for _, k := range klines {
		writer.Write([]string{
			k.OpenTime.Format(time.RFC3339),
			k.CloseTime.Format(time.RFC3339),
			k.Symbol,
			k.Interval,
			strconv.FormatFloat(k.Open, 'f', -1, 64),
			strconv.FormatFloat(k.High, 'f', -1, 64),
			strconv.FormatFloat(k.Low, 'f', -1, 64),
			strconv.FormatFloat(k.Close, 'f', -1, 64),
			strconv.FormatFloat(k.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}
