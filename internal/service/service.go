// Package service provides business logic implementations over the state
// store: wallet/ledger mutations, mining-space lifecycle, and level
// progression. The mutation helpers operating on an in-memory record are
// exported so the mining engines can fold several changes into a single
// atomic save.
package service

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"scr-miner/internal/model"
	"scr-miner/internal/reward"
)

// User-visible rejections. None of these mutate state.
var (
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientScoins     = errors.New("insufficient scoins")
	ErrBelowConversionMinimum = errors.New("scoins below conversion minimum")
	ErrInvalidAmount          = errors.New("invalid amount: must be positive")
	ErrUnknownSymbol          = errors.New("unknown symbol")
	ErrSpaceNotFound          = errors.New("mining space not found")
	ErrSpaceLocked            = errors.New("mining space is locked")
	ErrSpaceExpired           = errors.New("mining space has expired")
	ErrWindowAlreadyExtended  = errors.New("mining window already at maximum")
)

// Credit adds amount to the holding for symbol, creating the row if needed
// and recomputing its USD value from the market snapshot. Holdings that
// reach zero are pruned, except SCR which always keeps its row.
func Credit(data *model.UserData, symbol string, amount float64) {
	h := data.Holding(symbol)
	if h == nil {
		name := symbol
		if m := data.Market(symbol); m != nil {
			name = m.Name
		}
		data.Holdings = append(data.Holdings, model.CryptoHolding{Symbol: symbol, Name: name})
		h = &data.Holdings[len(data.Holdings)-1]
	}
	h.Amount += amount
	if h.Amount < 0 {
		h.Amount = 0
	}
	h.ValueUsd = h.Amount * data.Price(symbol)

	pruneZeroHoldings(data)
}

func pruneZeroHoldings(data *model.UserData) {
	kept := data.Holdings[:0]
	for _, h := range data.Holdings {
		if h.Amount > 0 || h.Symbol == model.SymbolSCR {
			kept = append(kept, h)
		}
	}
	data.Holdings = kept
}

// AppendTx appends a ledger entry, dropping the oldest entries beyond the
// ledger cap. The ledger is kept newest-first.
func AppendTx(data *model.UserData, now time.Time, txType, symbol string, amount float64) model.Transaction {
	tx := model.Transaction{
		ID:        uuid.NewString(),
		Type:      txType,
		Amount:    amount,
		Symbol:    symbol,
		Timestamp: now.UnixMilli(),
		ValueUsd:  amount * data.Price(symbol),
		Status:    model.TxStatusCompleted,
	}
	data.Transactions = append([]model.Transaction{tx}, data.Transactions...)
	if len(data.Transactions) > model.MaxLedgerEntries {
		data.Transactions = data.Transactions[:model.MaxLedgerEntries]
	}
	return tx
}

// ApplyExp adds experience, handling level-ups with remainder carry-over and
// expRequired recompute. Returns how many levels were gained.
func ApplyExp(stats *model.UserStats, amount float64, p reward.Params) int {
	stats.Exp += amount
	gained := 0
	for stats.Exp >= stats.ExpRequired && stats.Level < p.MaxLevel {
		stats.Exp -= stats.ExpRequired
		stats.Level++
		stats.ExpRequired = p.ExpRequired(stats.Level)
		gained++
	}
	return gained
}
