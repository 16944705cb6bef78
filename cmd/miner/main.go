// Package main is the entry point for the SCR mining simulator.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scr-miner/internal/config"
	"scr-miner/internal/mining"
	"scr-miner/internal/pkg/lock"
	"scr-miner/internal/reward"
	"scr-miner/internal/store"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the local state store
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer st.Close()

	keyLock := lock.NewKeyLock()

	engineCfg := mining.Config{
		Params: reward.Params{
			Model:          reward.Model(cfg.Mining.RewardModel),
			MinPerHour:     cfg.Mining.MinRewardPerHour,
			MaxPerHour:     cfg.Mining.MaxRewardPerHour,
			MinBlockReward: cfg.Mining.MinBlockReward,
			MaxBlockReward: cfg.Mining.MaxBlockReward,
			BaseExp:        cfg.Mining.BaseExp,
			ExpGrowth:      cfg.Mining.ExpGrowth,
			MaxLevel:       cfg.Mining.MaxLevel,
		},
		Difficulty:           cfg.Mining.Difficulty,
		MinAttempt:           time.Duration(cfg.Mining.MinAttemptSeconds) * time.Second,
		MaxAttempt:           time.Duration(cfg.Mining.MaxAttemptSeconds) * time.Second,
		FixedAttempt:         time.Duration(cfg.Mining.FixedAttemptSeconds) * time.Second,
		TickInterval:         cfg.Mining.TickInterval,
		AutoDelay:            cfg.Mining.AutoDelay,
		ExpPerBlock:          cfg.Mining.ExpPerBlock,
		ScoinsPerHour:        cfg.Spaces.ScoinsPerHour,
		AssumedBlockDuration: time.Duration(cfg.Mining.AssumedBlockSeconds) * time.Second,
	}

	// Reconcile the interval the app was closed for before anything else
	// mutates state.
	reconciler := mining.NewReconciler(st, keyLock, engineCfg, nil)
	data, report, err := reconciler.Reconcile(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Startup reconciliation failed")
	}
	if report.MainReconciled {
		log.Info().
			Float64("scr", report.CreditedSCR).
			Float64("seconds", report.CreditedSeconds).
			Msg("Credited mining accrued while closed")
	}

	// Foreground session; resume automatically when auto-mining was left on
	// and the window is not exhausted.
	session := mining.NewSession(st, keyLock, engineCfg, nil, nil)
	if data.UserStats.AutoMining {
		if err := session.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("Auto-mining not resumed")
		}
	}

	// Defensive periodic reconciliation while the process stays open. The
	// live session's interval is left to its own ticks.
	reconciler.SessionActive = session.Active
	go reconciler.Run(ctx, cfg.Reconcile.Interval)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Suspend keeps the open-session timestamp so the next startup credits
	// the downtime.
	session.Suspend()
	cancel()

	log.Info().Msg("Miner stopped gracefully")
}
