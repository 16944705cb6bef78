package mining

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"scr-miner/internal/model"
	"scr-miner/internal/pkg/lock"
	"scr-miner/internal/reward"
	"scr-miner/internal/service"
	"scr-miner/internal/store"
)

// Session is the foreground accrual engine: an explicit state machine
// (idle, attempting, cooldown, stopped) driving the per-second time tick,
// the attempt timer, and the auto-mining cooldown from a single goroutine.
// Every timer it arms is cancelled on the one teardown path, so no timer
// can fire against a stale session.
type Session struct {
	store *store.Store
	locks *lock.KeyLock
	cfg   Config
	now   func() time.Time
	rng   *rand.Rand

	// OnBlock, when set, is invoked after each resolved attempt.
	OnBlock func(BlockEvent)

	mu         sync.Mutex
	state      State
	curAttempt time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewSession creates a foreground mining session.
func NewSession(st *store.Store, locks *lock.KeyLock, cfg Config, now func() time.Time, rng *rand.Rand) *Session {
	if now == nil {
		now = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Session{store: st, locks: locks, cfg: cfg, now: now, rng: rng, state: StateIdle}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether the session currently owns the open-session
// timestamp. The reconciler consults this so it never credits an interval
// the live ticks are already paying for.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAttempting || s.state == StateCooldown
}

// Start opens a mining session: stamps the open-session timestamp, arms the
// attempt timer and the time tick, and runs until stopped or the window is
// exhausted. Rejects if mining is already active.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAttempting || s.state == StateCooldown {
		return ErrMiningActive
	}

	s.locks.Lock(store.KeyUserData)
	data := s.store.Load(ctx)
	if data.UserStats.ActiveMiningTime >= data.UserStats.MiningWindowSeconds {
		s.locks.Unlock(store.KeyUserData)
		return ErrMiningWindowExhausted
	}
	data.UserStats.LastMiningTimestamp = s.now().UnixMilli()
	err := s.store.Save(ctx, data)
	s.locks.Unlock(store.KeyUserData)
	if err != nil {
		return err
	}

	s.curAttempt = s.attemptDuration()
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.state = StateAttempting

	log.Info().
		Dur("attempt", s.curAttempt).
		Str("model", string(s.cfg.Params.Model)).
		Msg("Mining session started")

	go s.run(ctx, s.stopCh, s.doneCh)
	return nil
}

// Stop closes the session and clears the open-session timestamp: a
// deliberate stop leaves no pending accrual behind, and any in-flight
// attempt's partial progress is uncollected.
func (s *Session) Stop(ctx context.Context) {
	if !s.teardown() {
		return
	}

	s.locks.Lock(store.KeyUserData)
	data := s.store.Load(ctx)
	data.UserStats.LastMiningTimestamp = 0
	if err := s.store.Save(ctx, data); err != nil {
		log.Error().Err(err).Msg("Failed to persist mining stop")
	}
	s.locks.Unlock(store.KeyUserData)

	log.Info().Msg("Mining session stopped")
}

// Suspend closes the session but keeps the open-session timestamp so the
// reconciler credits the gap on next startup. This is the shutdown path.
func (s *Session) Suspend() {
	if s.teardown() {
		log.Info().Msg("Mining session suspended, pending accrual left for reconciliation")
	}
}

// teardown cancels the run loop and waits for it to exit. Returns false if
// no session was running.
func (s *Session) teardown() bool {
	s.mu.Lock()
	if s.state != StateAttempting && s.state != StateCooldown {
		s.mu.Unlock()
		return false
	}
	close(s.stopCh)
	done := s.doneCh
	s.state = StateStopped
	s.mu.Unlock()

	<-done
	return true
}

// run is the session's single event loop. All three timers live here and die
// with it.
func (s *Session) run(ctx context.Context, stopCh chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	attempt := time.NewTimer(s.curAttempt)
	defer attempt.Stop()

	var cooldown *time.Timer
	defer func() {
		if cooldown != nil {
			cooldown.Stop()
		}
	}()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.tick(ctx)

		case <-attempt.C:
			cont := s.resolveAttempt(ctx)
			if !cont {
				s.mu.Lock()
				s.state = StateIdle
				s.mu.Unlock()
				log.Info().Msg("Mining session finished")
				return
			}
			s.mu.Lock()
			s.state = StateCooldown
			s.mu.Unlock()
			cooldown = time.NewTimer(s.cfg.AutoDelay)

		case <-timerC(cooldown):
			cooldown = nil
			s.mu.Lock()
			s.curAttempt = s.attemptDuration()
			s.state = StateAttempting
			s.mu.Unlock()
			attempt.Reset(s.curAttempt)
		}
	}
}

// timerC returns the timer's channel, or a nil channel (never ready) when
// the timer is not armed.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// tick advances active mining time by one tick interval up to the window
// cap, accrues active spaces, and refreshes the open-session timestamp.
// Ticks are best-effort: when the record is contended the tick is skipped
// instead of queued, and the stale timestamp lets reconciliation credit the
// missed interval.
func (s *Session) tick(ctx context.Context) {
	if !s.locks.TryLock(store.KeyUserData) {
		return
	}
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	stats := &data.UserStats

	tickSec := s.cfg.TickInterval.Seconds()
	if stats.ActiveMiningTime < stats.MiningWindowSeconds {
		stats.ActiveMiningTime += tickSec
		if stats.ActiveMiningTime > stats.MiningWindowSeconds {
			stats.ActiveMiningTime = stats.MiningWindowSeconds
		}
	}
	stats.LastMiningTimestamp = s.now().UnixMilli()

	expired := service.AccrueSpaces(&data, s.now().UnixMilli(), s.cfg.ScoinsPerHour)
	for _, id := range expired {
		log.Info().Int("space", id).Msg("Mining space expired during session")
	}

	if err := s.store.Save(ctx, data); err != nil {
		log.Error().Err(err).Msg("Failed to persist mining tick")
	}
}

// resolveAttempt settles one mining attempt and reports whether auto-mining
// should chain into another.
func (s *Session) resolveAttempt(ctx context.Context) bool {
	s.locks.Lock(store.KeyUserData)

	data := s.store.Load(ctx)
	stats := &data.UserStats
	now := s.now()

	stats.TotalAttempts++

	var ev BlockEvent
	switch s.cfg.Params.Model {
	case reward.ModelProbability:
		ev.Success = s.rng.Float64() < reward.SuccessProbability(s.cfg.Difficulty)
		if ev.Success {
			ev.Reward = s.cfg.Params.BlockReward(s.cfg.Difficulty)
		}
	default: // reward.ModelDuration
		ev.Success = true
		ev.Reward = s.cfg.Params.PerSecond(stats.Level) * s.curAttempt.Seconds()
	}

	if ev.Success {
		stats.SuccessfulMines++
		service.Credit(&data, model.SymbolSCR, ev.Reward)
		service.AppendTx(&data, now, model.TxTypeMine, model.SymbolSCR, ev.Reward)
		ev.LevelsGained = service.ApplyExp(stats, s.cfg.ExpPerBlock, s.cfg.Params)
	}
	ev.Level = stats.Level

	cont := stats.AutoMining && stats.ActiveMiningTime < stats.MiningWindowSeconds
	if cont {
		stats.LastMiningTimestamp = now.UnixMilli()
	} else {
		stats.LastMiningTimestamp = 0
	}

	if err := s.store.Save(ctx, data); err != nil {
		log.Error().Err(err).Msg("Failed to persist mining attempt")
	}
	s.locks.Unlock(store.KeyUserData)

	if ev.Success {
		log.Info().
			Float64("reward", ev.Reward).
			Int("level", ev.Level).
			Msg("Block mined")
	} else {
		log.Info().Int("difficulty", s.cfg.Difficulty).Msg("Mining attempt failed")
	}

	if s.OnBlock != nil {
		s.OnBlock(ev)
	}
	return cont
}

// attemptDuration picks the next attempt's length: random within the
// configured bounds for the duration model, fixed for the probability model.
func (s *Session) attemptDuration() time.Duration {
	if s.cfg.Params.Model == reward.ModelProbability {
		return s.cfg.FixedAttempt
	}
	span := s.cfg.MaxAttempt - s.cfg.MinAttempt
	if span <= 0 {
		return s.cfg.MinAttempt
	}
	return s.cfg.MinAttempt + time.Duration(s.rng.Int63n(int64(span)+1))
}
