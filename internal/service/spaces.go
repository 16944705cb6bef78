package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"scr-miner/internal/model"
	"scr-miner/internal/pkg/lock"
	"scr-miner/internal/store"
)

// SpacesService handles the mining-space lifecycle: ad unlocks with a fixed
// expiry horizon, permanent premium unlocks, per-space Scoins accrual, and
// collection of buffered balances.
type SpacesService struct {
	store         *store.Store
	locks         *lock.KeyLock
	scoinsPerHour float64
	adDuration    time.Duration
	now           func() time.Time
}

// NewSpacesService creates a new SpacesService instance.
func NewSpacesService(st *store.Store, locks *lock.KeyLock, scoinsPerHour float64, adDuration time.Duration, now func() time.Time) *SpacesService {
	if now == nil {
		now = time.Now
	}
	return &SpacesService{store: st, locks: locks, scoinsPerHour: scoinsPerHour, adDuration: adDuration, now: now}
}

// WatchAd unlocks a space for the ad-unlock horizon. Re-watching while
// unlocked extends the expiry from now.
func (s *SpacesService) WatchAd(ctx context.Context, id int) (model.UserData, error) {
	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	sp := data.Space(id)
	if sp == nil {
		return data, ErrSpaceNotFound
	}

	now := s.now()
	sp.Unlocked = true
	if !sp.IsPremium {
		sp.ExpiresAt = now.Add(s.adDuration).UnixMilli()
	}

	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	log.Info().Int("space", id).Time("expires", time.UnixMilli(sp.ExpiresAt)).Msg("Mining space unlocked via ad")
	return data, nil
}

// UnlockPremium permanently unlocks a space: no expiry, never auto-locked.
func (s *SpacesService) UnlockPremium(ctx context.Context, id int) (model.UserData, error) {
	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	sp := data.Space(id)
	if sp == nil {
		return data, ErrSpaceNotFound
	}

	sp.Unlocked = true
	sp.IsPremium = true
	sp.ExpiresAt = 0

	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	log.Info().Int("space", id).Msg("Mining space unlocked permanently")
	return data, nil
}

// StartSpace begins accrual on an unlocked, unexpired space.
func (s *SpacesService) StartSpace(ctx context.Context, id int) (model.UserData, error) {
	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	sp := data.Space(id)
	if sp == nil {
		return data, ErrSpaceNotFound
	}

	nowMs := s.now().UnixMilli()
	if expireSpaceIfDue(sp, nowMs) {
		if err := s.store.Save(ctx, data); err != nil {
			log.Error().Err(err).Int("space", id).Msg("Failed to persist space expiry")
		}
		return data, ErrSpaceExpired
	}
	if !sp.Unlocked {
		return data, ErrSpaceLocked
	}

	sp.Active = true
	sp.LastAccrualTimestamp = nowMs

	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	return data, nil
}

// StopSpace stops accrual on a space, leaving its buffered balance intact.
func (s *SpacesService) StopSpace(ctx context.Context, id int) (model.UserData, error) {
	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	sp := data.Space(id)
	if sp == nil {
		return data, ErrSpaceNotFound
	}

	sp.Active = false
	sp.LastAccrualTimestamp = 0

	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	return data, nil
}

// Collect realizes a space's buffered Scoins into the user's balance.
// Collecting before expiry is the only way to keep space earnings.
func (s *SpacesService) Collect(ctx context.Context, id int) (model.UserData, float64, error) {
	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	sp := data.Space(id)
	if sp == nil {
		return data, 0, ErrSpaceNotFound
	}

	nowMs := s.now().UnixMilli()
	if expireSpaceIfDue(sp, nowMs) {
		if err := s.store.Save(ctx, data); err != nil {
			log.Error().Err(err).Int("space", id).Msg("Failed to persist space expiry")
		}
		return data, 0, ErrSpaceExpired
	}
	if !sp.Unlocked {
		return data, 0, ErrSpaceLocked
	}

	collected := sp.ScoinsEarned
	sp.ScoinsEarned = 0
	data.UserStats.Scoins += collected

	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, 0, err
	}
	if collected > 0 {
		log.Info().Int("space", id).Float64("scoins", collected).Msg("Space earnings collected")
	}
	return data, collected, nil
}

// AccrueSpaces folds elapsed time into every active space's buffered balance
// on the in-memory record. For each active space it credits
// scoinsPerSecond x seconds since the space's own last accrual timestamp,
// clamped at the expiry for ad-unlocked spaces, then advances the timestamp.
// Expired ad spaces are locked and their uncollected buffer forfeited.
// Returns the ids of spaces expired by this pass.
//
// Exported because the reconciler and the foreground sweep both need it
// inside a larger single-save update.
func AccrueSpaces(data *model.UserData, nowMs int64, scoinsPerHour float64) []int {
	perMs := scoinsPerHour / 3600 / 1000
	var expired []int

	for i := range data.MiningSpaces {
		sp := &data.MiningSpaces[i]

		if sp.Active && sp.Unlocked && sp.LastAccrualTimestamp > 0 {
			until := nowMs
			if !sp.IsPremium && sp.ExpiresAt > 0 && sp.ExpiresAt < until {
				until = sp.ExpiresAt
			}
			if elapsed := until - sp.LastAccrualTimestamp; elapsed > 0 {
				sp.ScoinsEarned += float64(elapsed) * perMs
				sp.LastAccrualTimestamp = until
			}
		}

		if expireSpaceIfDue(sp, nowMs) {
			expired = append(expired, sp.ID)
		}
	}
	return expired
}

// expireSpaceIfDue enforces the expiry policy on a single space: a
// non-premium space past its expiresAt locks, deactivates, and forfeits any
// uncollected buffer. Returns true if the space expired on this observation.
func expireSpaceIfDue(sp *model.MiningSpace, nowMs int64) bool {
	if sp.IsPremium || sp.ExpiresAt == 0 || sp.ExpiresAt > nowMs {
		return false
	}
	sp.Unlocked = false
	sp.Active = false
	sp.ExpiresAt = 0
	sp.ScoinsEarned = 0
	sp.LastAccrualTimestamp = 0
	return true
}

// Sweep applies accrual and expiry across all spaces and persists the
// result. The foreground engine calls this on its tick.
func (s *SpacesService) Sweep(ctx context.Context) (model.UserData, error) {
	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)

	data := s.store.Load(ctx)
	expired := AccrueSpaces(&data, s.now().UnixMilli(), s.scoinsPerHour)
	if err := s.store.Save(ctx, data); err != nil {
		return model.UserData{}, err
	}
	for _, id := range expired {
		log.Info().Int("space", id).Msg("Mining space expired, uncollected earnings forfeited")
	}
	return data, nil
}
