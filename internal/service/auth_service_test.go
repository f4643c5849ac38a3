package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatline/internal/domain"
	"chatline/internal/mail"
	"chatline/internal/security"
	"chatline/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByActivationID(ctx context.Context, activationID string) (*domain.User, error) {
	args := m.Called(ctx, activationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByPasswordResetID(ctx context.Context, resetID string) (*domain.User, error) {
	args := m.Called(ctx, resetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) Update(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error {
	args := m.Called(ctx, id, isOnline)
	return args.Error(0)
}

func (m *MockUserRepo) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	return nil, nil // Not used in auth tests
}

func (m *MockUserRepo) AreFriends(ctx context.Context, userID, otherID int64) (bool, error) {
	return false, nil
}

func (m *MockUserRepo) AddFriend(ctx context.Context, userID, friendID int64) error {
	return nil
}

func (m *MockUserRepo) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	return nil
}

func (m *MockUserRepo) ListRequestSenderIDs(ctx context.Context, recipientID int64) ([]int64, error) {
	return nil, nil
}

func (m *MockUserRepo) HasFriendRequest(ctx context.Context, senderID, recipientID int64) (bool, error) {
	return false, nil
}

func (m *MockUserRepo) AddFriendRequest(ctx context.Context, senderID, recipientID int64) error {
	return nil
}

func (m *MockUserRepo) RemoveFriendRequest(ctx context.Context, senderID, recipientID int64) error {
	return nil
}

type MockTokenRepo struct {
	mock.Mock
}

func (m *MockTokenRepo) Save(ctx context.Context, userID int64, refreshToken string) error {
	args := m.Called(ctx, userID, refreshToken)
	return args.Error(0)
}

func (m *MockTokenRepo) Find(ctx context.Context, refreshToken string) (*domain.Token, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Token), args.Error(1)
}

func (m *MockTokenRepo) Delete(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockTokenRepo) DeleteForUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newAuthService(users *MockUserRepo, tokens *MockTokenRepo) *service.AuthService {
	tokenSvc := security.NewTokenService("access", "refresh", time.Hour, 24*time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests
	return service.NewAuthService(users, tokens, tokenSvc, hasher, mail.NopMailer{}, "http://localhost:3000")
}

func TestSignUp(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAuthService(users, new(MockTokenRepo))

		users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
		users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "new@example.com" && u.ActivationID != nil && !u.IsActivated
		})).Return(nil)

		user, err := svc.SignUp(context.Background(), service.SignUpInput{
			Email:    "new@example.com",
			FullName: "New User",
			Password: "Password1!",
		})
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.NotEqual(t, "Password1!", user.HashedPassword)
		users.AssertExpectations(t)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAuthService(users, new(MockTokenRepo))

		users.On("GetByEmail", mock.Anything, "taken@example.com").
			Return(&domain.User{ID: 1, Email: "taken@example.com"}, nil)

		_, err := svc.SignUp(context.Background(), service.SignUpInput{
			Email:    "taken@example.com",
			FullName: "Someone",
			Password: "Password1!",
		})
		assert.ErrorIs(t, err, service.ErrEmailTaken)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("MissingFields", func(t *testing.T) {
		svc := newAuthService(new(MockUserRepo), new(MockTokenRepo))
		_, err := svc.SignUp(context.Background(), service.SignUpInput{Email: "x@example.com"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestActivate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAuthService(users, new(MockTokenRepo))

		id := "activation-id"
		expires := time.Now().Add(time.Hour)
		users.On("GetByActivationID", mock.Anything, id).Return(&domain.User{
			ID:                  7,
			Email:               "user@example.com",
			ActivationID:        &id,
			ActivationExpiresAt: &expires,
		}, nil)
		users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.IsActivated && u.ActivationID == nil
		})).Return(nil)

		require.NoError(t, svc.Activate(context.Background(), id))
		users.AssertExpectations(t)
	})

	t.Run("ExpiredLinkCarriesEmail", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAuthService(users, new(MockTokenRepo))

		id := "stale-id"
		expires := time.Now().Add(-time.Minute)
		users.On("GetByActivationID", mock.Anything, id).Return(&domain.User{
			Email:               "late@example.com",
			ActivationID:        &id,
			ActivationExpiresAt: &expires,
		}, nil)

		err := svc.Activate(context.Background(), id)
		var expired *domain.ExpiredLinkError
		require.ErrorAs(t, err, &expired)
		assert.Equal(t, "late@example.com", expired.Email)
	})

	t.Run("UnknownID", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAuthService(users, new(MockTokenRepo))

		users.On("GetByActivationID", mock.Anything, "nope").Return(nil, domain.ErrNotFound)
		assert.ErrorIs(t, svc.Activate(context.Background(), "nope"), domain.ErrNotFound)
	})
}

func TestSignIn(t *testing.T) {
	hasher := security.NewPasswordHasher(4)
	hashed, err := hasher.Hash("Password1!")
	require.NoError(t, err)

	activated := func() *domain.User {
		return &domain.User{
			ID:             3,
			Email:          "user@example.com",
			HashedPassword: hashed,
			IsActivated:    true,
		}
	}

	t.Run("Success", func(t *testing.T) {
		users := new(MockUserRepo)
		tokens := new(MockTokenRepo)
		svc := newAuthService(users, tokens)

		users.On("GetByEmail", mock.Anything, "user@example.com").Return(activated(), nil)
		tokens.On("Save", mock.Anything, int64(3), mock.Anything).Return(nil)

		res, err := svc.SignIn(context.Background(), "user@example.com", "Password1!")
		require.NoError(t, err)
		assert.NotEmpty(t, res.Tokens.AccessToken)
		assert.NotEmpty(t, res.Tokens.RefreshToken)
		assert.Equal(t, int64(3), res.User.ID)
		tokens.AssertExpectations(t)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAuthService(users, new(MockTokenRepo))

		users.On("GetByEmail", mock.Anything, "user@example.com").Return(activated(), nil)
		_, err := svc.SignIn(context.Background(), "user@example.com", "wrong")
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAuthService(users, new(MockTokenRepo))

		users.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, domain.ErrNotFound)
		_, err := svc.SignIn(context.Background(), "nobody@example.com", "Password1!")
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("NotActivated", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAuthService(users, new(MockTokenRepo))

		u := activated()
		u.IsActivated = false
		users.On("GetByEmail", mock.Anything, "user@example.com").Return(u, nil)
		_, err := svc.SignIn(context.Background(), "user@example.com", "Password1!")
		assert.ErrorIs(t, err, service.ErrNotActivated)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("UnknownCredential", func(t *testing.T) {
		users := new(MockUserRepo)
		tokens := new(MockTokenRepo)
		svc := newAuthService(users, tokens)

		// well-signed token that is not in the store anymore
		tokenSvc := security.NewTokenService("access", "refresh", time.Hour, 24*time.Hour)
		pair, err := tokenSvc.IssueTokens(3, "user@example.com")
		require.NoError(t, err)

		tokens.On("Find", mock.Anything, pair.RefreshToken).Return(nil, domain.ErrNotFound)
		_, err = svc.Refresh(context.Background(), pair.RefreshToken)
		assert.ErrorIs(t, err, service.ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		tokens := new(MockTokenRepo)
		svc := newAuthService(new(MockUserRepo), tokens)

		tokens.On("Delete", mock.Anything, "garbage").Return(nil)
		_, err := svc.Refresh(context.Background(), "garbage")
		assert.ErrorIs(t, err, service.ErrInvalidToken)
	})
}

func TestSetNewPassword(t *testing.T) {
	t.Run("RevokesRefreshCredential", func(t *testing.T) {
		users := new(MockUserRepo)
		tokens := new(MockTokenRepo)
		svc := newAuthService(users, tokens)

		id := "reset-id"
		expires := time.Now().Add(time.Hour)
		users.On("GetByPasswordResetID", mock.Anything, id).Return(&domain.User{
			ID:                     9,
			Email:                  "user@example.com",
			HashedPassword:         "old-hash",
			PasswordResetID:        &id,
			PasswordResetExpiresAt: &expires,
		}, nil)
		users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.PasswordResetID == nil && u.HashedPassword != "old-hash"
		})).Return(nil)
		tokens.On("DeleteForUser", mock.Anything, int64(9)).Return(nil)

		require.NoError(t, svc.SetNewPassword(context.Background(), id, "NewPassword1!"))
		users.AssertExpectations(t)
		tokens.AssertExpectations(t)
	})

	t.Run("ExpiredLinkCarriesEmail", func(t *testing.T) {
		users := new(MockUserRepo)
		svc := newAuthService(users, new(MockTokenRepo))

		id := "stale-reset"
		expires := time.Now().Add(-time.Minute)
		users.On("GetByPasswordResetID", mock.Anything, id).Return(&domain.User{
			Email:                  "late@example.com",
			PasswordResetID:        &id,
			PasswordResetExpiresAt: &expires,
		}, nil)

		err := svc.SetNewPassword(context.Background(), id, "NewPassword1!")
		var expired *domain.ExpiredLinkError
		require.ErrorAs(t, err, &expired)
		assert.Equal(t, "late@example.com", expired.Email)
	})

	t.Run("EmptyPassword", func(t *testing.T) {
		svc := newAuthService(new(MockUserRepo), new(MockTokenRepo))
		err := svc.SetNewPassword(context.Background(), "reset-id", "")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestLogout(t *testing.T) {
	users := new(MockUserRepo)
	tokens := new(MockTokenRepo)
	svc := newAuthService(users, tokens)

	tokens.On("Find", mock.Anything, "refresh-token").
		Return(&domain.Token{UserID: 5, RefreshToken: "refresh-token"}, nil)
	tokens.On("Delete", mock.Anything, "refresh-token").Return(nil)
	users.On("SetOnlineStatus", mock.Anything, int64(5), false).Return(nil)

	require.NoError(t, svc.Logout(context.Background(), "refresh-token"))
	users.AssertExpectations(t)
	tokens.AssertExpectations(t)
}
