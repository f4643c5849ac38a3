package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatline/internal/domain"
	"chatline/internal/mail"
	"chatline/internal/security"
)

// Sentinel errors for authentication flows.
var (
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", domain.ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: incorrect email or password", domain.ErrUnauthorized)
	ErrNotActivated       = fmt.Errorf("%w: account is not activated", domain.ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: refresh token not recognized", domain.ErrUnauthorized)
)

const (
	activationTTL = 24 * time.Hour
	resetTTL      = time.Hour
)

// AuthService handles account registration, activation, the token
// lifecycle and password reset. Mail delivery is fire-and-forget: a
// failed send never rolls back the account mutation that triggered it.
type AuthService struct {
	users     domain.UserRepository
	tokens    domain.TokenRepository
	tokenSvc  *security.TokenService
	hash      *security.PasswordHasher
	mailer    mail.Mailer
	clientURL string
}

func NewAuthService(
	users domain.UserRepository,
	tokens domain.TokenRepository,
	tokenSvc *security.TokenService,
	hash *security.PasswordHasher,
	mailer mail.Mailer,
	clientURL string,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		tokenSvc:  tokenSvc,
		hash:      hash,
		mailer:    mailer,
		clientURL: clientURL,
	}
}

type SignUpInput struct {
	Email    string
	FullName string
	Password string
}

func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*domain.User, error) {
	if in.Email == "" || in.FullName == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email, full name and password are required", domain.ErrValidation)
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	activationID := uuid.NewString()
	expires := time.Now().Add(activationTTL)
	user := &domain.User{
		Email:               in.Email,
		FullName:            in.FullName,
		HashedPassword:      hashed,
		ActivationID:        &activationID,
		ActivationExpiresAt: &expires,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.mailer.SendActivationMail(user.Email, user.FullName, s.clientURL+"/auth/activate/"+activationID)
	return user, nil
}

// Activate flips the account active. An expired link surfaces the account
// email so the client can offer to resend.
func (s *AuthService) Activate(ctx context.Context, activationID string) error {
	user, err := s.users.GetByActivationID(ctx, activationID)
	if err != nil {
		return fmt.Errorf("get by activation id: %w", err)
	}
	if user.ActivationExpiresAt != nil && time.Now().After(*user.ActivationExpiresAt) {
		return &domain.ExpiredLinkError{Email: user.Email}
	}

	user.IsActivated = true
	user.ActivationID = nil
	user.ActivationExpiresAt = nil
	return s.users.Update(ctx, user)
}

type SignInResult struct {
	Tokens *security.TokenPair
	User   *domain.User
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := s.hash.Verify(password, user.HashedPassword); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActivated {
		return nil, ErrNotActivated
	}

	return s.issue(ctx, user)
}

// Refresh validates a refresh credential against both its signature and
// the persisted one-per-user record, then reissues the pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*SignInResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	userID, err := s.tokenSvc.ParseRefresh(refreshToken)
	if err != nil {
		_ = s.tokens.Delete(ctx, refreshToken)
		return nil, ErrInvalidToken
	}
	if _, err := s.tokens.Find(ctx, refreshToken); err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		_ = s.tokens.Delete(ctx, refreshToken)
		return nil, ErrInvalidToken
	}

	return s.issue(ctx, user)
}

// Logout removes the persisted refresh credential and marks the user
// offline.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	token, err := s.tokens.Find(ctx, refreshToken)
	if err != nil {
		return ErrInvalidToken
	}
	if err := s.tokens.Delete(ctx, refreshToken); err != nil {
		return err
	}
	return s.users.SetOnlineStatus(ctx, token.UserID, false)
}

// RequestPasswordReset records a reset id and mails the link.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	resetID := uuid.NewString()
	expires := time.Now().Add(resetTTL)
	user.PasswordResetID = &resetID
	user.PasswordResetExpiresAt = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.mailer.SendPasswordResetMail(user.Email, user.FullName, s.clientURL+"/auth/reset/"+resetID)
	return nil
}

// CheckPasswordReset validates a reset link without consuming it.
func (s *AuthService) CheckPasswordReset(ctx context.Context, resetID string) error {
	_, err := s.resetCandidate(ctx, resetID)
	return err
}

// SetNewPassword consumes a valid reset link, replaces the password and
// revokes the user's stored refresh credential so existing sessions
// cannot be refreshed with the old one.
func (s *AuthService) SetNewPassword(ctx context.Context, resetID, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password must not be empty", domain.ErrValidation)
	}
	user, err := s.resetCandidate(ctx, resetID)
	if err != nil {
		return err
	}

	hashed, err := s.hash.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.HashedPassword = hashed
	user.PasswordResetID = nil
	user.PasswordResetExpiresAt = nil
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	return s.tokens.DeleteForUser(ctx, user.ID)
}

func (s *AuthService) resetCandidate(ctx context.Context, resetID string) (*domain.User, error) {
	user, err := s.users.GetByPasswordResetID(ctx, resetID)
	if err != nil {
		return nil, fmt.Errorf("get by reset id: %w", err)
	}
	if user.PasswordResetExpiresAt != nil && time.Now().After(*user.PasswordResetExpiresAt) {
		return nil, &domain.ExpiredLinkError{Email: user.Email}
	}
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*SignInResult, error) {
	pair, err := s.tokenSvc.IssueTokens(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	// one active refresh credential per user: reissue supersedes
	if err := s.tokens.Save(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}
	return &SignInResult{Tokens: pair, User: user}, nil
}
