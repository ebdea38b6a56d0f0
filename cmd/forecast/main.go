package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"PriceCast/internal/di"
	"PriceCast/internal/services/chart"
	"PriceCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	symbol := flag.String("symbol", "", "ticker to forecast, e.g. RELIANCE.NS")
	days := flag.Int("days", 0, "forecast horizon in calendar days (0 uses forecast.horizon)")
	train := flag.Bool("train", false, "retrain the model before forecasting")
	backfill := flag.Int("backfill", 0, "copy this many days of Yahoo closes into ClickHouse and exit")
	chartPath := flag.String("chart", "", "also write a PNG chart to this path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()

	if *backfill > 0 {
		runBackfill(ctx, cfg, *backfill)
		return
	}

	core, cleanup, err := di.InitializeCore(cfg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer cleanup()

	if *train {
		tctx, cancel := context.WithTimeout(ctx, cfg.Training.Timeout)
		m, err := core.Registry.Retrain(tctx, "cli")
		cancel()
		if err != nil {
			log.Fatalf("training failed: %v", err)
		}
		log.Printf("trained model %s", m.Version())
	} else {
		if err := core.Registry.Warmup(ctx); err != nil {
			log.Fatalf("model load failed: %v", err)
		}
		core.Registry.Wait()
	}

	if *symbol == "" {
		return
	}
	horizon := *days
	if horizon == 0 {
		horizon = cfg.Forecast.Horizon
	}

	res := core.Forecaster.ForecastSymbol(ctx, strings.ToUpper(*symbol), horizon)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatalf("encode result: %v", err)
	}

	if *chartPath != "" && res.Success {
		img, err := chart.RenderPNG(res)
		if err != nil {
			log.Fatalf("render chart: %v", err)
		}
		if err := os.WriteFile(*chartPath, img, 0o644); err != nil {
			log.Fatalf("write chart: %v", err)
		}
	}
	if !res.Success {
		cleanup()
		os.Exit(1)
	}
}

func runBackfill(ctx context.Context, cfg *config.Config, days int) {
	l, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	bf, cleanup, err := di.NewBackfill(cfg, l)
	if err != nil {
		log.Fatalf("backfill init failed: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	n, err := bf.Run(ctx, cfg.Training.Symbols, days)
	if err != nil {
		log.Fatalf("backfill failed: %v", err)
	}
	log.Printf("backfilled %d closes for %d symbols", n, len(cfg.Training.Symbols))
}
