// Command agentfolio runs the simulated portfolio: a ledger with an
// append-only trade log, an autonomous decision loop trading against it, and
// a dashboard API serving state and performance analytics.
//
// Usage:
//
//	agentfolio --setup                  (interactive config wizard)
//	agentfolio --config config.yaml
//	agentfolio                          (CLI flags with defaults)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"go.uber.org/zap"

	"github.com/agentfolio/agentfolio/config"
	"github.com/agentfolio/agentfolio/dashboard"
	"github.com/agentfolio/agentfolio/internal/services/agent"
	"github.com/agentfolio/agentfolio/internal/services/analytics"
	"github.com/agentfolio/agentfolio/internal/services/collector"
	"github.com/agentfolio/agentfolio/internal/services/ledger"
	"github.com/agentfolio/agentfolio/internal/services/pricer"
	"github.com/agentfolio/agentfolio/internal/services/snapshot"
	"github.com/agentfolio/agentfolio/internal/setup"
	"github.com/agentfolio/agentfolio/internal/storage/decisions"
	"github.com/agentfolio/agentfolio/internal/storage/ledgerdb"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--setup" || arg == "-setup" {
			if err := setup.RunTUI(); err != nil {
				log.Fatal(err)
			}
			return
		}
	}

	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	store, err := ledgerdb.Open(conf.DBPath, conf.InitialCash)
	if err != nil {
		logger.Fatal("open ledger store", zap.Error(err))
	}
	defer store.Close()

	var source pricer.Source
	switch conf.Platform {
	case "binance":
		source = pricer.NewBinanceSource(binance.NewClient("", ""))
	case "bybit":
		source = pricer.NewBybitSource(bybit.NewClient())
	default:
		logger.Fatal("unsupported platform", zap.String("platform", conf.Platform))
	}

	resolver := pricer.NewResolver(conf.Pair, store, source, conf.PriceTimeout, logger)
	engine := analytics.NewEngine(conf.InitialCash, conf.RiskFreeRate)
	recorder := snapshot.NewRecorder(store, resolver, logger)
	facade := ledger.New(store, resolver, recorder, engine, logger)

	journal, err := decisions.NewWALStore(conf.WALDir)
	if err != nil {
		logger.Fatal("open decision journal", zap.Error(err))
	}
	defer journal.Close()

	prices := collector.New(conf.Pair, source, store, conf.CollectInterval, logger)

	trader, err := agent.New(conf.Pair, facade, resolver, prices, journal,
		conf.TradePercent, conf.FeeRate, conf.DecisionInterval, time.Now().UnixNano(), logger)
	if err != nil {
		logger.Fatal("create agent", zap.Error(err))
	}

	server := dashboard.NewServer(conf.DashboardAddr, facade, journal, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := prices.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("price collector stopped", zap.Error(err))
		}
	}()

	go func() {
		if err := trader.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("agent stopped", zap.Error(err))
		}
	}()

	go runSnapshots(ctx, facade, conf.SnapshotInterval, logger)

	go func() {
		var err error
		if len(conf.TLSDomains) > 0 {
			err = server.StartWithAutoTLS(ctx, conf.TLSDomains, "")
		} else {
			err = server.Start(ctx)
		}
		if err != nil {
			logger.Error("dashboard stopped", zap.Error(err))
		}
	}()

	logger.Info("agentfolio started",
		zap.String("pair", conf.Pair.String()),
		zap.String("platform", conf.Platform),
		zap.String("dashboard", conf.DashboardAddr))

	<-ctx.Done()
	logger.Info("shutting down")
}

// runSnapshots drives the snapshot recorder on its cadence. Skipped or failed
// ticks are harmless: snapshots are pure derived reads.
func runSnapshots(ctx context.Context, facade *ledger.Ledger, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := facade.RecordSnapshotNow(ctx); err != nil {
				logger.Warn("snapshot tick failed", zap.Error(err))
			}
		}
	}
}
