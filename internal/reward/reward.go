// Package reward implements the reward-rate, experience, and difficulty
// formulas shared by the foreground accrual engine and background
// reconciliation. Both engines must consume the same Params value so a
// closed-app interval is credited at the same rate as live ticking.
package reward

import "math"

// Model selects how a mining attempt resolves.
type Model string

const (
	// ModelDuration resolves every attempt as a success after a random
	// bounded duration; the reward scales with the user's level.
	ModelDuration Model = "duration"

	// ModelProbability resolves fixed-length attempts with a single random
	// draw; success probability falls and reward rises with difficulty.
	ModelProbability Model = "probability"
)

// Difficulty bounds for the probability model.
const (
	MinDifficulty = 1
	MaxDifficulty = 10
)

// Params carries the reward configuration for both engines.
type Params struct {
	Model Model

	// Level-based SCR/hour band, interpolated linearly across levels 1..MaxLevel.
	MinPerHour float64
	MaxPerHour float64

	// Per-block SCR band for the probability model, interpolated across
	// difficulties 1..10.
	MinBlockReward float64
	MaxBlockReward float64

	BaseExp   float64
	ExpGrowth float64
	MaxLevel  int
}

// clampLevel keeps level inside 1..MaxLevel so a hand-edited record cannot
// push the rate outside the documented band.
func (p Params) clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > p.MaxLevel {
		return p.MaxLevel
	}
	return level
}

// PerHour returns the SCR mined per hour at the given level. It is strictly
// increasing in level across the configured band.
func (p Params) PerHour(level int) float64 {
	level = p.clampLevel(level)
	span := float64(p.MaxLevel - 1)
	if span <= 0 {
		return p.MinPerHour
	}
	return p.MinPerHour + float64(level-1)/span*(p.MaxPerHour-p.MinPerHour)
}

// PerSecond returns the SCR mined per second at the given level.
func (p Params) PerSecond(level int) float64 {
	return p.PerHour(level) / 3600
}

// ExpRequired returns the experience threshold for advancing past level.
func (p Params) ExpRequired(level int) float64 {
	level = p.clampLevel(level)
	return math.Floor(p.BaseExp * math.Pow(p.ExpGrowth, float64(level-1)))
}

// SuccessProbability returns the chance a probability-model attempt
// succeeds: 1 at difficulty 1, falling linearly to 0 at difficulty 10.
func SuccessProbability(difficulty int) float64 {
	difficulty = clampDifficulty(difficulty)
	return 1 - float64(difficulty-1)/9
}

// BlockReward returns the SCR credited for a successful probability-model
// attempt. It rises linearly with difficulty across the configured band.
func (p Params) BlockReward(difficulty int) float64 {
	difficulty = clampDifficulty(difficulty)
	return p.MinBlockReward + float64(difficulty-1)/9*(p.MaxBlockReward-p.MinBlockReward)
}

func clampDifficulty(difficulty int) int {
	if difficulty < MinDifficulty {
		return MinDifficulty
	}
	if difficulty > MaxDifficulty {
		return MaxDifficulty
	}
	return difficulty
}
