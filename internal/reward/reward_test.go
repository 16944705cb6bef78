package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func testParams() Params {
	return Params{
		Model:          ModelDuration,
		MinPerHour:     0.05,
		MaxPerHour:     0.50,
		MinBlockReward: 0.05,
		MaxBlockReward: 0.50,
		BaseExp:        100,
		ExpGrowth:      1.5,
		MaxLevel:       10,
	}
}

func TestPerHourBand(t *testing.T) {
	p := testParams()

	assert.InDelta(t, 0.05, p.PerHour(1), 1e-9)
	assert.InDelta(t, 0.50, p.PerHour(10), 1e-9)
	assert.InDelta(t, 0.05+4.0/9*0.45, p.PerHour(5), 1e-9)

	// Out-of-range levels clamp to the band
	assert.InDelta(t, 0.05, p.PerHour(0), 1e-9)
	assert.InDelta(t, 0.50, p.PerHour(99), 1e-9)
}

// TestLevelRewardMonotonicityProperty: for any two levels L1 < L2, the
// per-unit-time reward at L2 is strictly greater than at L1.
func TestLevelRewardMonotonicityProperty(t *testing.T) {
	p := testParams()
	rapid.Check(t, func(rt *rapid.T) {
		l1 := rapid.IntRange(1, 9).Draw(rt, "l1")
		l2 := rapid.IntRange(l1+1, 10).Draw(rt, "l2")

		if p.PerHour(l2) <= p.PerHour(l1) {
			rt.Fatalf("PerHour(%d)=%v not greater than PerHour(%d)=%v", l2, p.PerHour(l2), l1, p.PerHour(l1))
		}
		if p.PerSecond(l2) <= p.PerSecond(l1) {
			rt.Fatalf("PerSecond(%d)=%v not greater than PerSecond(%d)=%v", l2, p.PerSecond(l2), l1, p.PerSecond(l1))
		}
	})
}

func TestExpRequiredCurve(t *testing.T) {
	p := testParams()

	assert.Equal(t, float64(100), p.ExpRequired(1))
	assert.Equal(t, float64(150), p.ExpRequired(2))
	assert.Equal(t, float64(225), p.ExpRequired(3))
	// floor(100 * 1.5^9)
	assert.Equal(t, float64(3844), p.ExpRequired(10))
}

// TestDifficultyInverseRelationProperty: for difficulties D1 < D2, success
// probability at D2 is <= that at D1 while the reward at D2 is >= that at D1.
func TestDifficultyInverseRelationProperty(t *testing.T) {
	p := testParams()
	rapid.Check(t, func(rt *rapid.T) {
		d1 := rapid.IntRange(1, 9).Draw(rt, "d1")
		d2 := rapid.IntRange(d1+1, 10).Draw(rt, "d2")

		if SuccessProbability(d2) > SuccessProbability(d1) {
			rt.Fatalf("probability rose with difficulty: P(%d)=%v > P(%d)=%v",
				d2, SuccessProbability(d2), d1, SuccessProbability(d1))
		}
		if p.BlockReward(d2) < p.BlockReward(d1) {
			rt.Fatalf("reward fell with difficulty: R(%d)=%v < R(%d)=%v",
				d2, p.BlockReward(d2), d1, p.BlockReward(d1))
		}
	})
}

func TestSuccessProbabilityBounds(t *testing.T) {
	assert.Equal(t, 1.0, SuccessProbability(1))
	assert.Equal(t, 0.0, SuccessProbability(10))
	assert.InDelta(t, 1-4.0/9, SuccessProbability(5), 1e-9)

	// Clamped outside 1..10
	assert.Equal(t, 1.0, SuccessProbability(-3))
	assert.Equal(t, 0.0, SuccessProbability(42))
}
