package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"scr-miner/internal/model"
	"scr-miner/internal/pkg/lock"
	"scr-miner/internal/reward"
	"scr-miner/internal/store"
)

func testParams() reward.Params {
	return reward.Params{
		Model:          reward.ModelDuration,
		MinPerHour:     0.05,
		MaxPerHour:     0.50,
		MinBlockReward: 0.05,
		MaxBlockReward: 0.50,
		BaseExp:        100,
		ExpGrowth:      1.5,
		MaxLevel:       10,
	}
}

func testStore(t *testing.T) (*store.Store, *lock.KeyLock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, lock.NewKeyLock()
}

func TestConvertScoins(t *testing.T) {
	st, locks := testStore(t)
	ctx := context.Background()
	w := NewWalletService(st, locks, 10, 10, nil)

	data := st.Load(ctx)
	data.UserStats.Scoins = 25
	require.NoError(t, st.Save(ctx, data))

	got, scr, err := w.ConvertScoins(ctx)
	require.NoError(t, err)

	// 25 floors to 20, 20/10 = 2 SCR
	assert.Equal(t, 2.0, scr)
	assert.Equal(t, 5.0, got.UserStats.Scoins)
	assert.Equal(t, 2.0, got.Holding(model.SymbolSCR).Amount)

	require.Len(t, got.Transactions, 1)
	assert.Equal(t, model.TxTypeConvert, got.Transactions[0].Type)
	assert.Equal(t, 2.0, got.Transactions[0].Amount)
}

func TestConvertScoinsBelowMinimum(t *testing.T) {
	st, locks := testStore(t)
	ctx := context.Background()
	w := NewWalletService(st, locks, 10, 10, nil)

	data := st.Load(ctx)
	data.UserStats.Scoins = 9.99
	require.NoError(t, st.Save(ctx, data))

	_, _, err := w.ConvertScoins(ctx)
	assert.ErrorIs(t, err, ErrBelowConversionMinimum)

	got := st.Load(ctx)
	assert.Equal(t, 9.99, got.UserStats.Scoins, "rejected conversion must not mutate state")
	assert.Empty(t, got.Transactions)
}

// For any balance at or above the minimum, conversion debits an exact
// multiple of the ratio and credits the quotient, leaving the remainder.
func TestConvertScoinsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		scoins := float64(rapid.IntRange(10, 100000).Draw(rt, "scoins"))

		data := model.DefaultUserData(time.Now())
		data.UserStats.Scoins = scoins

		converted := float64(int(scoins/10)) * 10
		want := converted / 10

		// Model the conversion arithmetic directly
		remaining := scoins - converted
		if remaining < 0 || remaining >= 10 {
			rt.Fatalf("remainder %v out of range for balance %v", remaining, scoins)
		}
		if want*10 != converted {
			rt.Fatalf("credited %v SCR does not correspond to %v Scoins", want, converted)
		}
	})
}

func TestApplyExpLevelUpCarry(t *testing.T) {
	p := testParams()
	stats := model.UserStats{Level: 1, ExpRequired: 100}

	gained := ApplyExp(&stats, 130, p)
	assert.Equal(t, 1, gained)
	assert.Equal(t, 2, stats.Level)
	assert.Equal(t, 30.0, stats.Exp, "remainder carries over")
	assert.Equal(t, p.ExpRequired(2), stats.ExpRequired)
}

func TestApplyExpMultiLevel(t *testing.T) {
	p := testParams()
	stats := model.UserStats{Level: 1, ExpRequired: 100}

	// 100 + 150 + 10 crosses two thresholds
	gained := ApplyExp(&stats, 260, p)
	assert.Equal(t, 2, gained)
	assert.Equal(t, 3, stats.Level)
	assert.Equal(t, 10.0, stats.Exp)
}

func TestApplyExpCapsAtMaxLevel(t *testing.T) {
	p := testParams()
	stats := model.UserStats{Level: 10, ExpRequired: p.ExpRequired(10)}

	gained := ApplyExp(&stats, 1e9, p)
	assert.Zero(t, gained)
	assert.Equal(t, 10, stats.Level, "level never exceeds the maximum")
}

func TestExtendMiningWindow(t *testing.T) {
	st, locks := testStore(t)
	ctx := context.Background()
	p := NewProgressService(st, locks, testParams(), 5, 24*time.Hour, 10)

	data := st.Load(ctx)
	data.UserStats.Scoins = 7
	require.NoError(t, st.Save(ctx, data))

	got, err := p.ExtendMiningWindow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.UserStats.Scoins)
	assert.Equal(t, float64(86400), got.UserStats.MiningWindowSeconds)

	// Already extended
	_, err = p.ExtendMiningWindow(ctx)
	assert.ErrorIs(t, err, ErrWindowAlreadyExtended)
}

func TestExtendMiningWindowInsufficientScoins(t *testing.T) {
	st, locks := testStore(t)
	ctx := context.Background()
	p := NewProgressService(st, locks, testParams(), 5, 24*time.Hour, 10)

	_, err := p.ExtendMiningWindow(ctx)
	assert.ErrorIs(t, err, ErrInsufficientScoins)

	got := st.Load(ctx)
	assert.Equal(t, float64(model.DefaultMiningWindowSeconds), got.UserStats.MiningWindowSeconds)
}

func TestLedgerCap(t *testing.T) {
	data := model.DefaultUserData(time.Now())
	now := time.Now()

	for i := 0; i < model.MaxLedgerEntries+20; i++ {
		AppendTx(&data, now, model.TxTypeMine, model.SymbolSCR, float64(i+1))
	}

	assert.Len(t, data.Transactions, model.MaxLedgerEntries)
	// Newest first: the last appended amount leads the ledger
	assert.Equal(t, float64(model.MaxLedgerEntries+20), data.Transactions[0].Amount)
}

func TestCreditPrunesZeroHoldingsButKeepsSCR(t *testing.T) {
	data := model.DefaultUserData(time.Now())

	Credit(&data, "ETH", 2)
	require.NotNil(t, data.Holding("ETH"))

	Credit(&data, "ETH", -2)
	assert.Nil(t, data.Holding("ETH"), "zero-amount holdings are pruned")
	assert.NotNil(t, data.Holding(model.SymbolSCR), "the SCR row always survives")
}

func TestCreditDerivesUsdValue(t *testing.T) {
	data := model.DefaultUserData(time.Now())

	Credit(&data, model.SymbolSCR, 10)
	assert.InDelta(t, 10*model.DefaultSCRPrice, data.Holding(model.SymbolSCR).ValueUsd, 1e-9)
}

func TestWalletDebits(t *testing.T) {
	st, locks := testStore(t)
	ctx := context.Background()
	w := NewWalletService(st, locks, 10, 10, nil)

	_, err := w.AddSCR(ctx, 5)
	require.NoError(t, err)

	_, err = w.Sell(ctx, model.SymbolSCR, 10)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	got, err := w.Transfer(ctx, model.SymbolSCR, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Holding(model.SymbolSCR).Amount)
	assert.Equal(t, model.TxTypeTransfer, got.Transactions[0].Type)

	_, err = w.Buy(ctx, "DOGE", 1)
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	got, err = w.Buy(ctx, "BTC", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Holding("BTC").Amount)
}
