package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxUsernameLength = 150
	minPasswordLength = 8
	maxPasswordBytes  = 72 // bcrypt ignores anything longer
)

// AccountService registers accounts and manages their sessions
type AccountService struct {
	repo       repository.AuctionDB
	sessionTTL time.Duration
	hashCost   int
	now        func() time.Time
}

// RegisterInput is the registration form
type RegisterInput struct {
	Username     string
	Email        string
	FirstName    string
	LastName     string
	Password     string
	Confirmation string
}

func NewAccountService(repo repository.AuctionDB, sessionTTL time.Duration) *AccountService {
	return &AccountService{
		repo:       repo,
		sessionTTL: sessionTTL,
		hashCost:   bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithHashCost sets the bcrypt cost used for new passwords
func (s *AccountService) WithHashCost(cost int) *AccountService {
	s.hashCost = cost
	return s
}

// WithClock replaces the time source used for session expiry
func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// Register creates an account and signs it in
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (models.Account, models.Session, error) {
	if err := validateRegistration(&in); err != nil {
		return models.Account{}, models.Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return models.Account{}, models.Session{}, fmt.Errorf("service: failed to hash password: %w", err)
	}

	account := models.Account{
		AccountID:    utils.GenerateID(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return models.Account{}, models.Session{}, fmt.Errorf("service: failed to register %s: %w", in.Username, err)
	}

	session, err := s.startSession(ctx, account.AccountID)
	if err != nil {
		return models.Account{}, models.Session{}, err
	}

	return account, session, nil
}

func validateRegistration(in *RegisterInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if in.Username == "" {
		return fmt.Errorf("service: %w - username is required", auctionerrors.ErrInvalidInput)
	}
	if len(in.Username) > maxUsernameLength {
		return fmt.Errorf("service: %w - username is longer than %d characters", auctionerrors.ErrInvalidInput, maxUsernameLength)
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return fmt.Errorf("service: %w - invalid email address", auctionerrors.ErrInvalidInput)
		}
	}
	if in.Password != in.Confirmation {
		return fmt.Errorf("service: %w - passwords must match", auctionerrors.ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return fmt.Errorf("service: %w - password must be at least %d characters", auctionerrors.ErrInvalidInput, minPasswordLength)
	}
	if len(in.Password) > maxPasswordBytes {
		return fmt.Errorf("service: %w - password must be at most %d bytes", auctionerrors.ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}

// Login checks credentials and opens a new session
func (s *AccountService) Login(ctx context.Context, username, password string) (models.Account, models.Session, error) {
	account, err := s.repo.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, auctionerrors.ErrAccountNotFound) {
		return models.Account{}, models.Session{}, fmt.Errorf("service: %w", auctionerrors.ErrInvalidCredentials)
	}
	if err != nil {
		return models.Account{}, models.Session{}, fmt.Errorf("service: failed to look up %s: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return models.Account{}, models.Session{}, fmt.Errorf("service: %w", auctionerrors.ErrInvalidCredentials)
	}

	session, err := s.startSession(ctx, account.AccountID)
	if err != nil {
		return models.Account{}, models.Session{}, err
	}

	return account, session, nil
}

// Logout ends a session. Unknown tokens are ignored.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("service: failed to end session: %w", err)
	}
	return nil
}

// Authenticate resolves a session token to its account
func (s *AccountService) Authenticate(ctx context.Context, token string) (models.Account, error) {
	if token == "" {
		return models.Account{}, fmt.Errorf("service: %w - missing session token", auctionerrors.ErrUnauthenticated)
	}
	if !utils.IsValidID(token) {
		return models.Account{}, fmt.Errorf("service: %w - malformed session token", auctionerrors.ErrUnauthenticated)
	}

	session, err := s.repo.GetSession(ctx, token)
	if errors.Is(err, auctionerrors.ErrSessionNotFound) {
		return models.Account{}, fmt.Errorf("service: %w - unknown session", auctionerrors.ErrUnauthenticated)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("service: failed to load session: %w", err)
	}

	if !s.now().Before(session.ExpiresAt) {
		if err := s.repo.DeleteSession(ctx, token); err != nil {
			utils.Warn("Authenticate: failed to delete expired session", map[string]any{"account_id": session.AccountID, "error": err.Error()})
		}
		return models.Account{}, fmt.Errorf("service: %w - session expired", auctionerrors.ErrUnauthenticated)
	}

	account, err := s.repo.GetAccount(ctx, session.AccountID)
	if errors.Is(err, auctionerrors.ErrAccountNotFound) {
		return models.Account{}, fmt.Errorf("service: %w - account no longer exists", auctionerrors.ErrUnauthenticated)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("service: failed to load account %s: %w", session.AccountID, err)
	}

	return account, nil
}

func (s *AccountService) startSession(ctx context.Context, accountID string) (models.Session, error) {
	now := s.now()
	session := models.Session{
		Token:     utils.GenerateID(),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return models.Session{}, fmt.Errorf("service: failed to start session for account %s: %w", accountID, err)
	}
	return session, nil
}
