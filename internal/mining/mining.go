// Package mining implements the two accrual engines: the foreground session
// that converts live wall-clock time into currency while the process runs,
// and the background reconciler that replays the interval the process was
// closed for, exactly once.
package mining

import (
	"errors"
	"time"

	"scr-miner/internal/reward"
)

// Session/engine rejections.
var (
	ErrMiningActive          = errors.New("mining already active")
	ErrMiningWindowExhausted = errors.New("active mining window exhausted")
)

// Config carries the parameters both engines run with. The reward Params are
// shared so live ticking and catch-up reconciliation credit at the same
// level-dependent rate.
type Config struct {
	Params     reward.Params
	Difficulty int

	// Attempt durations: Min/Max bound the duration model's random attempts,
	// Fixed is the probability model's attempt length.
	MinAttempt   time.Duration
	MaxAttempt   time.Duration
	FixedAttempt time.Duration

	TickInterval time.Duration
	AutoDelay    time.Duration

	ExpPerBlock   float64
	ScoinsPerHour float64

	// AssumedBlockDuration is the per-block duration the reconciler assumes
	// when estimating how many blocks a closed-app interval represents.
	AssumedBlockDuration time.Duration
}

// State is a mining session's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateCooldown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateCooldown:
		return "cooldown"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// BlockEvent describes one resolved mining attempt.
type BlockEvent struct {
	Success      bool
	Reward       float64
	Level        int
	LevelsGained int
}
