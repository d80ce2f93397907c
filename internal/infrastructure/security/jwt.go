package security

import (
	"errors"
	"fmt"
	"time"

	"courseplatform/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour

	accessType  = "access"
	refreshType = "refresh"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

func NewTokenManager(accessSecret, refreshSecret string) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
}

// Generate issues an access and a refresh token for the user. Every
// refresh token carries a unique jti so two logins in the same second
// never produce the same token.
func (m *TokenManager) Generate(userID uuid.UUID) (TokenPair, error) {
	now := m.now()

	access, err := m.sign(userID, accessType, now.Add(AccessTTL), m.accessSecret)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.sign(userID, refreshType, now.Add(RefreshTTL), m.refreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *TokenManager) sign(userID uuid.UUID, typ string, exp time.Time, secret []byte) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID.String(),
		"exp":  exp.Unix(),
		"iat":  m.now().Unix(),
		"jti":  uuid.NewString(),
		"type": typ,
	})
	return t.SignedString(secret)
}

func (m *TokenManager) ValidateAccessToken(tokenStr string) (uuid.UUID, error) {
	return m.validate(tokenStr, accessType, m.accessSecret)
}

func (m *TokenManager) ValidateRefreshToken(tokenStr string) (uuid.UUID, error) {
	return m.validate(tokenStr, refreshType, m.refreshSecret)
}

func (m *TokenManager) validate(tokenStr, typ string, secret []byte) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid || claims["type"] != typ {
		return uuid.Nil, domain.ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return id, nil
}
