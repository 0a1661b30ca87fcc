// Command ledgerbook runs a deterministic backtest: it replays a snapshot
// and trade tape through the simulation kernel, advancing simulated time
// in fixed steps until both feeds are exhausted, then reports the
// resulting PnL. It carries no trading strategy of its own — SendLimit/
// SendMarket/WithdrawLimit are a strategy's collaborators, and this
// driver simply lets time pass.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"ledgerbook/internal/config"
	"ledgerbook/internal/feed"
	"ledgerbook/internal/kernel"
)

// advanceStepMS is the simulated-time granularity the driver steps the
// kernel forward by on each tick while feed data remains.
const advanceStepMS = 10

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to run config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().
			Err(err).Msg("loading config")
	}
	if err := cfg.Validate(); err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().
			Err(err).Msg("invalid config")
	}

	log := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("backtest run failed")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer = os.Stdout
	logger := zerolog.New(writer).With().Timestamp().Logger().Level(level)
	if cfg.Format == "console" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339})
	}
	return logger
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	snapshotFile, err := os.Open(cfg.Feed.SnapshotPath)
	if err != nil {
		return err
	}
	defer snapshotFile.Close()

	tradeFile, err := os.Open(cfg.Feed.TradePath)
	if err != nil {
		return err
	}
	defer tradeFile.Close()

	snapshots, err := feed.ReadSnapshots(snapshotFile)
	if err != nil {
		return err
	}
	trades, err := feed.ReadTrades(tradeFile)
	if err != nil {
		return err
	}
	log.Info().Int("snapshots", len(snapshots)).Int("trades", len(trades)).Msg("feeds loaded")

	eng := kernel.New(snapshots, trades, cfg.KernelConfig(), log)

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		return replay(ctx, eng, log)
	})

	if err := t.Wait(); err != nil {
		return err
	}

	pnl := eng.PnL()
	log.Info().
		Int64("cash", pnl.Cash).
		Int64("asset", pnl.Asset).
		Uint64("timestamp", pnl.Timestamp).
		Msg("backtest complete")
	return nil
}

// replay advances the kernel in fixed steps until both feeds are
// exhausted or ctx is canceled.
func replay(ctx context.Context, eng *kernel.Engine, log zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("replay canceled")
			return nil
		default:
		}

		if eng.Exhausted() {
			return nil
		}

		if _, err := eng.Advance(advanceStepMS); err != nil {
			return err
		}
	}
}
