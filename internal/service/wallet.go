package service

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"scr-miner/internal/model"
	"scr-miner/internal/pkg/lock"
	"scr-miner/internal/store"
)

// WalletService handles holdings, the transaction ledger, and Scoins
// conversion.
type WalletService struct {
	store     *store.Store
	locks     *lock.KeyLock
	minScoins float64
	ratio     float64
	now       func() time.Time
}

// NewWalletService creates a new WalletService instance. minScoins is the
// smallest convertible Scoins balance; ratio is how many Scoins buy one SCR.
func NewWalletService(st *store.Store, locks *lock.KeyLock, minScoins, ratio float64, now func() time.Time) *WalletService {
	if now == nil {
		now = time.Now
	}
	return &WalletService{store: st, locks: locks, minScoins: minScoins, ratio: ratio, now: now}
}

// AddSCR credits amount SCR to the wallet and records a mined transaction.
func (s *WalletService) AddSCR(ctx context.Context, amount float64) (model.UserData, error) {
	if amount <= 0 {
		return model.UserData{}, ErrInvalidAmount
	}

	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	Credit(&data, model.SymbolSCR, amount)
	AppendTx(&data, s.now(), model.TxTypeMine, model.SymbolSCR, amount)

	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	log.Debug().Float64("amount", amount).Msg("SCR credited")
	return data, nil
}

// AddScoins credits Scoins directly (referral bonuses, space collection).
func (s *WalletService) AddScoins(ctx context.Context, amount float64) (model.UserData, error) {
	if amount <= 0 {
		return model.UserData{}, ErrInvalidAmount
	}

	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	data.UserStats.Scoins += amount
	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	return data, nil
}

// ConvertScoins converts the largest ratio-multiple of the Scoins balance
// into SCR and records a convert transaction. Rejects without mutation when
// the balance is below the configured minimum.
func (s *WalletService) ConvertScoins(ctx context.Context) (model.UserData, float64, error) {
	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	if data.UserStats.Scoins < s.minScoins {
		return data, 0, ErrBelowConversionMinimum
	}

	scoinsToConvert := math.Floor(data.UserStats.Scoins/s.ratio) * s.ratio
	scrToAdd := scoinsToConvert / s.ratio

	data.UserStats.Scoins -= scoinsToConvert
	Credit(&data, model.SymbolSCR, scrToAdd)
	AppendTx(&data, s.now(), model.TxTypeConvert, model.SymbolSCR, scrToAdd)

	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, 0, err
	}
	log.Info().
		Float64("scoins", scoinsToConvert).
		Float64("scr", scrToAdd).
		Msg("Scoins converted to SCR")
	return data, scrToAdd, nil
}

// Buy acquires amount of symbol at the snapshot price and records a buy
// transaction. The purchase is simulated: nothing is debited.
func (s *WalletService) Buy(ctx context.Context, symbol string, amount float64) (model.UserData, error) {
	if amount <= 0 {
		return model.UserData{}, ErrInvalidAmount
	}

	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	if data.Market(symbol) == nil {
		return data, ErrUnknownSymbol
	}
	Credit(&data, symbol, amount)
	AppendTx(&data, s.now(), model.TxTypeBuy, symbol, amount)

	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	return data, nil
}

// Sell disposes of amount of symbol and records a sell transaction.
func (s *WalletService) Sell(ctx context.Context, symbol string, amount float64) (model.UserData, error) {
	return s.debit(ctx, symbol, amount, model.TxTypeSell)
}

// Transfer sends amount of symbol out of the wallet and records a transfer
// transaction. Addresses are cosmetic; only the debit is real.
func (s *WalletService) Transfer(ctx context.Context, symbol string, amount float64) (model.UserData, error) {
	return s.debit(ctx, symbol, amount, model.TxTypeTransfer)
}

func (s *WalletService) debit(ctx context.Context, symbol string, amount float64, txType string) (model.UserData, error) {
	if amount <= 0 {
		return model.UserData{}, ErrInvalidAmount
	}

	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	h := data.Holding(symbol)
	if h == nil || h.Amount < amount {
		return data, ErrInsufficientBalance
	}
	Credit(&data, symbol, -amount)
	AppendTx(&data, s.now(), txType, symbol, amount)

	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	return data, nil
}

// Holdings returns a copy of the current holding rows.
func (s *WalletService) Holdings(ctx context.Context) []model.CryptoHolding {
	data := s.store.Load(ctx)
	out := make([]model.CryptoHolding, len(data.Holdings))
	copy(out, data.Holdings)
	return out
}

// Ledger returns up to limit most recent transactions.
func (s *WalletService) Ledger(ctx context.Context, limit int) []model.Transaction {
	data := s.store.Load(ctx)
	if limit <= 0 || limit > len(data.Transactions) {
		limit = len(data.Transactions)
	}
	out := make([]model.Transaction, limit)
	copy(out, data.Transactions[:limit])
	return out
}
