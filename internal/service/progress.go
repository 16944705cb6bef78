package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"scr-miner/internal/model"
	"scr-miner/internal/pkg/lock"
	"scr-miner/internal/reward"
	"scr-miner/internal/store"
)

// ProgressService handles experience, level-ups, the mining-window
// extension, and referral bonuses.
type ProgressService struct {
	store          *store.Store
	locks          *lock.KeyLock
	params         reward.Params
	extendCost     float64
	maxWindow      time.Duration
	referralScoins float64
}

// NewProgressService creates a new ProgressService instance.
func NewProgressService(st *store.Store, locks *lock.KeyLock, params reward.Params, extendCost float64, maxWindow time.Duration, referralScoins float64) *ProgressService {
	return &ProgressService{
		store:          st,
		locks:          locks,
		params:         params,
		extendCost:     extendCost,
		maxWindow:      maxWindow,
		referralScoins: referralScoins,
	}
}

// AddExp credits experience, applying level-ups with remainder carry.
// Returns the updated record and how many levels were gained.
func (s *ProgressService) AddExp(ctx context.Context, amount float64) (model.UserData, int, error) {
	if amount <= 0 {
		return model.UserData{}, 0, ErrInvalidAmount
	}

	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	gained := ApplyExp(&data.UserStats, amount, s.params)
	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, 0, err
	}
	if gained > 0 {
		log.Info().Int("level", data.UserStats.Level).Msg("Level up")
	}
	return data, gained, nil
}

// ExtendMiningWindow spends Scoins to raise the cumulative active-mining cap
// to the configured maximum. Rejects without mutation when the balance is
// short or the window is already at the maximum.
func (s *ProgressService) ExtendMiningWindow(ctx context.Context) (model.UserData, error) {
	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	maxSeconds := s.maxWindow.Seconds()
	if data.UserStats.MiningWindowSeconds >= maxSeconds {
		return data, ErrWindowAlreadyExtended
	}
	if data.UserStats.Scoins < s.extendCost {
		return data, ErrInsufficientScoins
	}

	data.UserStats.Scoins -= s.extendCost
	data.UserStats.MiningWindowSeconds = maxSeconds

	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	log.Info().
		Float64("cost", s.extendCost).
		Dur("window", s.maxWindow).
		Msg("Mining window extended")
	return data, nil
}

// ReferralBonus credits the cosmetic referral reward in Scoins.
func (s *ProgressService) ReferralBonus(ctx context.Context) (model.UserData, error) {
	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	data.UserStats.Scoins += s.referralScoins
	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	return data, nil
}
