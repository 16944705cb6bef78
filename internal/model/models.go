// Package model defines the data models for the SCR mining simulator.
package model

import "time"

// UserStats tracks progression and mining state for the profile.
type UserStats struct {
	Level               int     `json:"level"`
	Exp                 float64 `json:"exp"`
	ExpRequired         float64 `json:"expRequired"`
	SuccessfulMines     int64   `json:"successfulMines"`
	TotalAttempts       int64   `json:"totalAttempts"`
	Scoins              float64 `json:"scoins"`
	ActiveMiningTime    float64 `json:"activeMiningTime"`
	MiningWindowSeconds float64 `json:"miningWindowSeconds"`
	AutoMining          bool    `json:"autoMining"`
	// LastMiningTimestamp is present (non-zero) only while a mining session
	// is open. It is cleared in the same save that credits the owed interval,
	// which is what makes reconciliation exactly-once.
	LastMiningTimestamp int64 `json:"lastMiningTimestamp,omitempty"`
}

// CryptoHolding is one row per currency symbol held.
type CryptoHolding struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	ValueUsd float64 `json:"valueUsd"`
	Icon     string  `json:"icon,omitempty"`
}

// MiningSpace is one of the fixed set of independently unlockable accrual
// slots. A non-premium space is unlocked by watching an ad and expires;
// a premium space is unlocked once, permanently.
type MiningSpace struct {
	ID           int     `json:"id"`
	Unlocked     bool    `json:"unlocked"`
	Active       bool    `json:"active"`
	IsPremium    bool    `json:"isPremium"`
	ExpiresAt    int64   `json:"expiresAt,omitempty"`
	ScoinsEarned float64 `json:"scoinsEarned"`
	// LastAccrualTimestamp bounds the replay window for this slot so two
	// spaces started at different times reconcile independently.
	LastAccrualTimestamp int64 `json:"lastAccrualTimestamp,omitempty"`
}

// MarketData is a static market snapshot row used to derive USD values.
type MarketData struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Change24h   float64 `json:"change24h"`
	Volume24h   float64 `json:"volume24h"`
	MarketCap   float64 `json:"marketCap"`
	LastUpdated int64   `json:"lastUpdated"`
}

// Transaction is an append-only ledger entry, created when currency changes
// hands and never mutated afterwards.
type Transaction struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	ValueUsd  float64 `json:"valueUsd,omitempty"`
	Status    string  `json:"status"`
}

// UserData is the root aggregate, loaded and saved as a whole on every
// mutation.
type UserData struct {
	UserStats    UserStats       `json:"userStats"`
	Holdings     []CryptoHolding `json:"holdings"`
	MiningSpaces []MiningSpace   `json:"miningSpaces"`
	MarketData   []MarketData    `json:"marketData"`
	Transactions []Transaction   `json:"transactions"`
	LastUpdated  int64           `json:"lastUpdated"`
}

// UserAuth is the secondary persisted record holding credential and profile
// fields. Passwords are stored as bcrypt hashes only.
type UserAuth struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	FullName     string `json:"fullName"`
	Username     string `json:"username"`
	Provider     string `json:"provider"`
	ReferralCode string `json:"referralCode"`
	LoggedIn     bool   `json:"loggedIn"`
	CreatedAt    int64  `json:"createdAt"`
}

// Transaction types for categorizing ledger entries.
const (
	TxTypeMine     = "mine"     // Mining reward (live or reconciled catch-up)
	TxTypeBuy      = "buy"      // Market purchase
	TxTypeSell     = "sell"     // Market sale
	TxTypeTransfer = "transfer" // Outbound transfer
	TxTypeConvert  = "convert"  // Scoins converted to SCR
)

// Transaction statuses.
const (
	TxStatusCompleted = "completed"
	TxStatusPending   = "pending"
	TxStatusFailed    = "failed"
)

// SymbolSCR is the primary simulated currency.
const SymbolSCR = "SCR"

// MaxLedgerEntries caps the transaction ledger; entries beyond it are
// dropped oldest-first.
const MaxLedgerEntries = 100

// SpaceCount is the fixed number of mining spaces per profile.
const SpaceCount = 5

// DefaultSCRPrice is the seeded market price for SCR.
const DefaultSCRPrice = 0.15

// Default progression values for a fresh profile.
const (
	DefaultLevel       = 1
	DefaultExpRequired = 100
)

// DefaultMiningWindowSeconds is the cumulative active-mining cap for a fresh
// profile (12 hours); the Scoins extension raises it to the 24-hour maximum.
const DefaultMiningWindowSeconds = 12 * 60 * 60

// DefaultUserData builds the record a new profile starts from.
func DefaultUserData(now time.Time) UserData {
	ms := now.UnixMilli()
	spaces := make([]MiningSpace, 0, SpaceCount)
	for i := 1; i <= SpaceCount; i++ {
		spaces = append(spaces, MiningSpace{ID: i, Unlocked: i == 1})
	}
	return UserData{
		UserStats: UserStats{
			Level:               DefaultLevel,
			ExpRequired:         DefaultExpRequired,
			MiningWindowSeconds: DefaultMiningWindowSeconds,
			AutoMining:          true,
		},
		Holdings: []CryptoHolding{
			{Symbol: SymbolSCR, Name: "ScremyCoin", Icon: "gem"},
		},
		MiningSpaces: spaces,
		MarketData: []MarketData{
			{Symbol: "BTC", Name: "Bitcoin", Price: 49876.32, Change24h: 2.5, Volume24h: 29645123890, MarketCap: 967453921834, LastUpdated: ms},
			{Symbol: "ETH", Name: "Ethereum", Price: 3226.74, Change24h: 1.2, Volume24h: 15432678945, MarketCap: 387654321098, LastUpdated: ms},
			{Symbol: SymbolSCR, Name: "ScremyCoin", Price: DefaultSCRPrice, Change24h: 5.8, Volume24h: 7865432, MarketCap: 15000000, LastUpdated: ms},
		},
		Transactions: []Transaction{},
		LastUpdated:  ms,
	}
}

// Holding returns the holding row for symbol, or nil if absent.
func (d *UserData) Holding(symbol string) *CryptoHolding {
	for i := range d.Holdings {
		if d.Holdings[i].Symbol == symbol {
			return &d.Holdings[i]
		}
	}
	return nil
}

// Market returns the market snapshot row for symbol, or nil if absent.
func (d *UserData) Market(symbol string) *MarketData {
	for i := range d.MarketData {
		if d.MarketData[i].Symbol == symbol {
			return &d.MarketData[i]
		}
	}
	return nil
}

// Price returns the snapshot price for symbol, falling back to the seeded
// SCR price when the snapshot has no row.
func (d *UserData) Price(symbol string) float64 {
	if m := d.Market(symbol); m != nil {
		return m.Price
	}
	if symbol == SymbolSCR {
		return DefaultSCRPrice
	}
	return 0
}

// Space returns the mining space with the given id, or nil if out of range.
func (d *UserData) Space(id int) *MiningSpace {
	for i := range d.MiningSpaces {
		if d.MiningSpaces[i].ID == id {
			return &d.MiningSpaces[i]
		}
	}
	return nil
}
