package security

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService issues and validates the access/refresh JWT pair. Access
// and refresh tokens are signed with distinct secrets so a leaked refresh
// secret does not mint access tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// TokenPair is the issued credential set.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IssueTokens creates the access/refresh pair for a user id.
func (t *TokenService) IssueTokens(userID int64, email string) (*TokenPair, error) {
	access, err := t.sign(userID, email, t.accessSecret, t.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := t.sign(userID, email, t.refreshSecret, t.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ParseAccess validates an access token and returns the user id.
func (t *TokenService) ParseAccess(tokenStr string) (int64, error) {
	return t.parse(tokenStr, t.accessSecret)
}

// ParseRefresh validates a refresh token and returns the user id.
func (t *TokenService) ParseRefresh(tokenStr string) (int64, error) {
	return t.parse(tokenStr, t.refreshSecret)
}

func (t *TokenService) sign(userID int64, email string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(userID, 10),
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (t *TokenService) parse(tokenStr string, secret []byte) (int64, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, jwt.ErrSignatureInvalid
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, jwt.ErrTokenMalformed
	}
	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id == 0 {
		return 0, jwt.ErrTokenMalformed
	}
	return id, nil
}
