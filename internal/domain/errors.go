package domain

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrProfileNotFound   = errors.New("profile not found")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrEmailTaken         = errors.New("email already taken")

	// Device admission.
	ErrInvalidFingerprint = errors.New("invalid device fingerprint")
	ErrInvalidCap         = errors.New("device cap must be positive")
	ErrDeviceCapExceeded  = errors.New("maximum device limit reached")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrStorageConflict    = errors.New("storage conflict, try again")

	ErrCourseNotFound      = errors.New("course not found")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrSubscriptionExpired = errors.New("subscription expired")
	ErrCourseLimitReached  = errors.New("course limit reached for your plan")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAvatar       = errors.New("avatar_id must be between 1 and 10")
	ErrInvalidUsername     = errors.New("username cannot be empty")

	ErrPromoNotFound    = errors.New("promo code not found")
	ErrPromoExpired     = errors.New("promo code expired")
	ErrPromoExhausted   = errors.New("promo code usage limit reached")
	ErrPromoAlreadyUsed = errors.New("promo code already activated")
	ErrUnknownItemType  = errors.New("unknown item type")
	ErrInvalidItemID    = errors.New("invalid item id")
)
