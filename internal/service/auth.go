package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/atinyakov/AuraTemple/internal/crypto"
	"github.com/atinyakov/AuraTemple/internal/errs"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/leaderboard"
	"github.com/atinyakov/AuraTemple/internal/models"
)

const (
	minNameLength     = 3
	minPasswordLength = 6
)

// AuthService registers accounts and manages their session tokens.
type AuthService struct {
	accounts AccountRepository
	board    LeaderboardRepository
	cat      *game.Catalog
	size     int
	now      func() time.Time
}

// NewAuthService constructs an AuthService. size caps the leaderboard.
func NewAuthService(accounts AccountRepository, board LeaderboardRepository, cat *game.Catalog, size int) *AuthService {
	return &AuthService{accounts: accounts, board: board, cat: cat, size: size, now: time.Now}
}

// Register creates an account with a default state, issues its first token
// and places it on the leaderboard.
func (s *AuthService) Register(ctx context.Context, creds models.Credentials) (models.AuthResponse, error) {
	name := game.SanitizeName(creds.Name)
	if utf8.RuneCountInString(name) < minNameLength {
		return models.AuthResponse{}, fmt.Errorf("%w: name must be at least %d characters", errs.ErrValidation, minNameLength)
	}
	if utf8.RuneCountInString(creds.Password) < minPasswordLength {
		return models.AuthResponse{}, fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, minPasswordLength)
	}

	_, err := s.accounts.GetAccountByName(ctx, name)
	switch {
	case err == nil:
		return models.AuthResponse{}, fmt.Errorf("%w: name already taken", errs.ErrConflict)
	case !errors.Is(err, errs.ErrNotFound):
		return models.AuthResponse{}, fmt.Errorf("lookup account: %w", err)
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("generate salt: %w", err)
	}
	token, err := crypto.NewToken()
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("generate token: %w", err)
	}

	now := s.now().UTC()
	state := game.Sanitize(game.DefaultState(s.cat), s.cat, name)
	acc := models.Account{
		ID:           uuid.NewString(),
		Name:         name,
		NameLower:    strings.ToLower(name),
		PasswordSalt: salt,
		PasswordHash: crypto.HashPassword(creds.Password, salt),
		SessionToken: token,
		State:        state,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return models.AuthResponse{}, fmt.Errorf("%w: name already taken", errs.ErrConflict)
		}
		return models.AuthResponse{}, fmt.Errorf("create account: %w", err)
	}

	sub := leaderboard.Submission{Name: state.PlayerName, Aura: state.Aura, AccountID: acc.ID}
	if _, err := s.board.UpdateLeaderboard(ctx, func(e []models.LeaderboardEntry) []models.LeaderboardEntry {
		return leaderboard.Upsert(e, sub, now, s.size)
	}); err != nil {
		return models.AuthResponse{}, fmt.Errorf("update leaderboard: %w", err)
	}

	return models.AuthResponse{Token: token, Account: models.AccountInfo{Name: acc.Name}, State: state}, nil
}

// Login verifies the credentials and rotates the session token, which
// invalidates any token issued before.
func (s *AuthService) Login(ctx context.Context, creds models.Credentials) (models.AuthResponse, error) {
	name := game.SanitizeName(creds.Name)
	if name == "" || creds.Password == "" {
		return models.AuthResponse{}, fmt.Errorf("%w: name and password are required", errs.ErrValidation)
	}

	acc, err := s.accounts.GetAccountByName(ctx, name)
	if errors.Is(err, errs.ErrNotFound) {
		return models.AuthResponse{}, fmt.Errorf("%w: invalid credentials", errs.ErrUnauthorized)
	}
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("lookup account: %w", err)
	}
	if !crypto.VerifyPassword(creds.Password, acc.PasswordSalt, acc.PasswordHash) {
		return models.AuthResponse{}, fmt.Errorf("%w: invalid credentials", errs.ErrUnauthorized)
	}

	token, err := crypto.NewToken()
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("generate token: %w", err)
	}
	if err := s.accounts.SetSessionToken(ctx, acc.ID, token, s.now().UTC()); err != nil {
		return models.AuthResponse{}, fmt.Errorf("store token: %w", err)
	}

	return models.AuthResponse{
		Token:   token,
		Account: models.AccountInfo{Name: acc.Name},
		State:   game.Sanitize(acc.State, s.cat, acc.Name),
	}, nil
}

// Authenticate resolves a bearer token to its account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Account, error) {
	if token == "" {
		return models.Account{}, fmt.Errorf("%w: missing token", errs.ErrUnauthorized)
	}
	acc, err := s.accounts.GetAccountByToken(ctx, token)
	if errors.Is(err, errs.ErrNotFound) {
		return models.Account{}, fmt.Errorf("%w: unknown token", errs.ErrUnauthorized)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("lookup token: %w", err)
	}
	return acc, nil
}
