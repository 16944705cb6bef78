// Package auth implements registration and login against the secondary
// persisted credential record. Passwords are bcrypt-hashed and sessions are
// represented by signed HS256 tokens; nothing is ever compared in plaintext.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"scr-miner/internal/model"
	"scr-miner/internal/pkg/lock"
	"scr-miner/internal/store"
)

// Auth errors.
var (
	ErrAccountExists      = errors.New("an account is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrNotRegistered      = errors.New("no account is registered")
)

// Service handles the credential record and session tokens.
type Service struct {
	store      *store.Store
	locks      *lock.KeyLock
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
}

// NewService creates an auth service. secret signs session tokens; cost is
// the bcrypt work factor (0 picks the library default).
func NewService(st *store.Store, locks *lock.KeyLock, secret string, tokenTTL time.Duration, cost int, now func() time.Time) *Service {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      st,
		locks:      locks,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		bcryptCost: cost,
		now:        now,
	}
}

// Register creates the credential record for this profile. The store holds
// one profile, so a second registration is rejected.
func (s *Service) Register(ctx context.Context, email, password string) (model.UserAuth, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.UserAuth{}, ErrInvalidCredentials
	}

	s.locks.Lock(store.KeyUserAuth)
	defer s.locks.Unlock(store.KeyUserAuth)

	if _, exists := s.store.LoadAuth(ctx); exists {
		return model.UserAuth{}, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return model.UserAuth{}, fmt.Errorf("hash password: %w", err)
	}

	auth := model.UserAuth{
		Email:        email,
		PasswordHash: string(hash),
		Provider:     "email",
		ReferralCode: newReferralCode(),
		LoggedIn:     true,
		CreatedAt:    s.now().UnixMilli(),
	}
	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return model.UserAuth{}, err
	}

	log.Info().Str("email", email).Msg("Account registered")
	return auth, nil
}

// Login verifies the credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.locks.Lock(store.KeyUserAuth)
	defer s.locks.Unlock(store.KeyUserAuth)

	auth, exists := s.store.LoadAuth(ctx)
	if !exists {
		return "", ErrNotRegistered
	}
	if auth.Email != email {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(auth.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	auth.LoggedIn = true
	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return "", err
	}

	token, err := s.signToken(email)
	if err != nil {
		return "", err
	}
	log.Info().Str("email", email).Msg("Logged in")
	return token, nil
}

// Logout marks the session closed. Credentials are kept so the user can log
// back in.
func (s *Service) Logout(ctx context.Context) error {
	s.locks.Lock(store.KeyUserAuth)
	defer s.locks.Unlock(store.KeyUserAuth)

	auth, exists := s.store.LoadAuth(ctx)
	if !exists {
		return nil
	}
	auth.LoggedIn = false
	return s.store.SaveAuth(ctx, auth)
}

// DeleteAccount removes the credential record and resets user data to
// defaults.
func (s *Service) DeleteAccount(ctx context.Context) error {
	s.locks.Lock(store.KeyUserAuth)
	defer s.locks.Unlock(store.KeyUserAuth)

	if err := s.store.DeleteAuth(ctx); err != nil {
		return err
	}

	s.locks.Lock(store.KeyUserData)
	defer s.locks.Unlock(store.KeyUserData)
	if _, err := s.store.Reset(ctx); err != nil {
		return err
	}

	log.Info().Msg("Account deleted")
	return nil
}

// UpdateProfile updates the cosmetic profile fields on the credential
// record.
func (s *Service) UpdateProfile(ctx context.Context, fullName, username string) (model.UserAuth, error) {
	s.locks.Lock(store.KeyUserAuth)
	defer s.locks.Unlock(store.KeyUserAuth)

	auth, exists := s.store.LoadAuth(ctx)
	if !exists {
		return model.UserAuth{}, ErrNotRegistered
	}
	auth.FullName = fullName
	auth.Username = username
	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return model.UserAuth{}, err
	}
	return auth, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, current, updated string) error {
	if updated == "" {
		return ErrInvalidCredentials
	}

	s.locks.Lock(store.KeyUserAuth)
	defer s.locks.Unlock(store.KeyUserAuth)

	auth, exists := s.store.LoadAuth(ctx)
	if !exists {
		return ErrNotRegistered
	}
	if err := bcrypt.CompareHashAndPassword([]byte(auth.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(updated), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	auth.PasswordHash = string(hash)
	return s.store.SaveAuth(ctx, auth)
}

// signToken issues an HS256 session token for the given subject.
func (s *Service) signToken(subject string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": now.Add(s.tokenTTL).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a session token and returns its subject email.
func (s *Service) ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// newReferralCode builds a short cosmetic referral code.
func newReferralCode() string {
	return "SCR-" + strings.ToUpper(uuid.NewString()[:8])
}
