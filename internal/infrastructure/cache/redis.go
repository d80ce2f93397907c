package cache

import (
	"context"
	"errors"
	"time"

	"courseplatform/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	refreshTTL     = 7 * 24 * time.Hour
	resetTTL       = 15 * time.Minute
	emailChangeTTL = 24 * time.Hour
)

// Session is what a refresh token is bound to.
type Session struct {
	UserID      uuid.UUID
	Fingerprint string
}

type EmailChange struct {
	UserID   uuid.UUID
	NewEmail string
}

// TokenCache stores refresh, password reset and email change tokens.
// Refresh tokens are indexed per device so that evicting a device ends
// every session opened from it.
type TokenCache struct {
	client *redis.Client
}

func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

func refreshKey(token string) string { return "refresh_token:" + token }

func deviceSessionsKey(userID uuid.UUID, fingerprint string) string {
	return "device_sessions:" + userID.String() + ":" + fingerprint
}

func (c *TokenCache) SaveRefresh(ctx context.Context, s Session, token string) error {
	setKey := deviceSessionsKey(s.UserID, s.Fingerprint)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, refreshKey(token), "user_id", s.UserID.String(), "fingerprint", s.Fingerprint)
		p.Expire(ctx, refreshKey(token), refreshTTL)
		p.SAdd(ctx, setKey, token)
		p.Expire(ctx, setKey, refreshTTL)
		return nil
	})
	return err
}

// CheckRefresh returns domain.ErrTokenRevoked for unknown or expired tokens.
func (c *TokenCache) CheckRefresh(ctx context.Context, token string) (Session, error) {
	vals, err := c.client.HGetAll(ctx, refreshKey(token)).Result()
	if err != nil {
		return Session{}, err
	}
	if len(vals) == 0 {
		return Session{}, domain.ErrTokenRevoked
	}
	userID, err := uuid.Parse(vals["user_id"])
	if err != nil {
		return Session{}, domain.ErrTokenRevoked
	}
	return Session{UserID: userID, Fingerprint: vals["fingerprint"]}, nil
}

func (c *TokenCache) DeleteRefresh(ctx context.Context, token string) error {
	s, err := c.CheckRefresh(ctx, token)
	if errors.Is(err, domain.ErrTokenRevoked) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, refreshKey(token))
		p.SRem(ctx, deviceSessionsKey(s.UserID, s.Fingerprint), token)
		return nil
	})
	return err
}

// RevokeDevice deletes every refresh token issued to the device.
func (c *TokenCache) RevokeDevice(ctx context.Context, userID uuid.UUID, fingerprint string) error {
	setKey := deviceSessionsKey(userID, fingerprint)
	tokens, err := c.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, refreshKey(t))
	}
	keys = append(keys, setKey)
	return c.client.Del(ctx, keys...).Err()
}

func (c *TokenCache) SaveResetToken(ctx context.Context, token string, userID uuid.UUID) error {
	return c.client.Set(ctx, "reset_token:"+token, userID.String(), resetTTL).Err()
}

func (c *TokenCache) GetResetToken(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := c.client.Get(ctx, "reset_token:"+token).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, domain.ErrInvalidToken
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(val)
}

func (c *TokenCache) DeleteResetToken(ctx context.Context, token string) error {
	return c.client.Del(ctx, "reset_token:"+token).Err()
}

func (c *TokenCache) SaveEmailChange(ctx context.Context, token string, ec EmailChange) error {
	key := "email_change:" + token
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "user_id", ec.UserID.String(), "email", ec.NewEmail)
		p.Expire(ctx, key, emailChangeTTL)
		return nil
	})
	return err
}

// TakeEmailChange returns the pending change and removes it.
func (c *TokenCache) TakeEmailChange(ctx context.Context, token string) (EmailChange, error) {
	key := "email_change:" + token
	var get *redis.MapStringStringCmd
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		get = p.HGetAll(ctx, key)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		return EmailChange{}, err
	}
	vals := get.Val()
	if len(vals) == 0 {
		return EmailChange{}, domain.ErrInvalidToken
	}
	userID, err := uuid.Parse(vals["user_id"])
	if err != nil {
		return EmailChange{}, domain.ErrInvalidToken
	}
	return EmailChange{UserID: userID, NewEmail: vals["email"]}, nil
}
