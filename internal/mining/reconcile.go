package mining

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"scr-miner/internal/model"
	"scr-miner/internal/pkg/lock"
	"scr-miner/internal/reward"
	"scr-miner/internal/service"
	"scr-miner/internal/store"
)

// Reconciler is the background reconciliation engine. Nothing runs while the
// process is closed; on the next startup the reconciler converts the gap
// between the persisted open-session timestamp and the current wall clock
// into the currency the user would have mined, folds it into state in a
// single save, and clears the timestamp so the same interval can never be
// credited twice.
type Reconciler struct {
	store *store.Store
	locks *lock.KeyLock
	cfg   Config
	now   func() time.Time

	// SessionActive, when set, reports whether a foreground session
	// currently owns the open-session timestamp. While it does, the live
	// ticks are crediting that span, so main-mining reconciliation is
	// skipped to keep every interval single-credited.
	SessionActive func() bool
}

// Report summarizes what one reconciliation pass credited.
type Report struct {
	// MainReconciled is true when an open-session timestamp was found and
	// consumed (even if clock skew meant nothing was credited).
	MainReconciled  bool
	CreditedSCR     float64
	CreditedSeconds float64
	EstimatedBlocks int64
	SpaceScoins     map[int]float64
	ExpiredSpaces   []int
}

// NewReconciler creates a background reconciliation engine sharing the
// foreground engine's reward configuration.
func NewReconciler(st *store.Store, locks *lock.KeyLock, cfg Config, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: st, locks: locks, cfg: cfg, now: now}
}

// Reconcile folds all pending accrual into persisted state. It is safe to
// call at any time: with no open-session timestamp and freshly accrued
// spaces, it is a no-op. It never fails for bad persisted states; only a
// storage write error is returned.
func (r *Reconciler) Reconcile(ctx context.Context) (model.UserData, Report, error) {
	r.locks.Lock(store.KeyUserData)
	defer r.locks.Unlock(store.KeyUserData)

	data := r.store.Load(ctx)
	now := r.now()
	nowMs := now.UnixMilli()
	report := Report{SpaceScoins: map[int]float64{}}

	stats := &data.UserStats
	if ts := stats.LastMiningTimestamp; ts != 0 && !r.sessionLive() {
		report.MainReconciled = true
		elapsedMs := nowMs - ts

		if elapsedMs > 0 {
			elapsed := float64(elapsedMs) / 1000

			// The credit window is bounded by the profile's remaining
			// active-mining allowance, itself capped at 24 hours.
			remaining := stats.MiningWindowSeconds - stats.ActiveMiningTime
			if remaining < 0 {
				remaining = 0
			}
			clamped := elapsed
			if clamped > remaining {
				clamped = remaining
			}

			if clamped > 0 {
				blockSec := r.cfg.AssumedBlockDuration.Seconds()
				var blocks int64
				if blockSec > 0 {
					blocks = int64(clamped / blockSec)
				}

				// Each model replays its own live rate: the duration model
				// pays the level band per second, the probability model pays
				// the block band per expected success.
				var mined float64
				successes := blocks
				switch r.cfg.Params.Model {
				case reward.ModelProbability:
					p := reward.SuccessProbability(r.cfg.Difficulty)
					successes = int64(float64(blocks) * p)
					mined = float64(successes) * r.cfg.Params.BlockReward(r.cfg.Difficulty)
				default:
					mined = clamped * r.cfg.Params.PerSecond(stats.Level)
				}

				stats.ActiveMiningTime += clamped
				stats.SuccessfulMines += successes
				stats.TotalAttempts += blocks

				if mined > 0 {
					service.Credit(&data, model.SymbolSCR, mined)
					service.AppendTx(&data, now, model.TxTypeMine, model.SymbolSCR, mined)
				}

				report.CreditedSCR = mined
				report.CreditedSeconds = clamped
				report.EstimatedBlocks = blocks
			}
		}
		// Cleared unconditionally, in the same save as the credit: negative
		// or zero elapsed time is never credited, and a consumed interval is
		// never replayed.
		stats.LastMiningTimestamp = 0
	}

	before := spaceBuffers(&data)
	report.ExpiredSpaces = service.AccrueSpaces(&data, nowMs, r.cfg.ScoinsPerHour)
	for id, buf := range spaceBuffers(&data) {
		if delta := buf - before[id]; delta > 0 {
			report.SpaceScoins[id] = delta
		}
	}

	if err := r.store.Save(ctx, data); err != nil {
		return model.UserData{}, report, err
	}

	if report.MainReconciled || len(report.SpaceScoins) > 0 || len(report.ExpiredSpaces) > 0 {
		log.Info().
			Float64("scr", report.CreditedSCR).
			Float64("seconds", report.CreditedSeconds).
			Int64("blocks", report.EstimatedBlocks).
			Ints("expired_spaces", report.ExpiredSpaces).
			Msg("Reconciled pending accrual")
	}
	return data, report, nil
}

func (r *Reconciler) sessionLive() bool {
	return r.SessionActive != nil && r.SessionActive()
}

func spaceBuffers(data *model.UserData) map[int]float64 {
	out := make(map[int]float64, len(data.MiningSpaces))
	for _, sp := range data.MiningSpaces {
		out[sp.ID] = sp.ScoinsEarned
	}
	return out
}

// Run invokes Reconcile on a fixed interval until the context is cancelled.
// It bounds how much unreconciled time can accumulate while the process
// stays open.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := r.Reconcile(ctx); err != nil {
				log.Error().Err(err).Msg("Periodic reconciliation failed")
			}
		}
	}
}
