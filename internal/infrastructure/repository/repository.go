package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courseplatform/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// DeviceTx is the view of the device table inside an admission transaction.
// Every call is a single statement; atomicity across calls comes from the
// surrounding InUserTx.
type DeviceTx interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Device, error)
	Create(ctx context.Context, device *domain.Device) error
	Touch(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
}

// DeviceStore is implemented by DeviceRepository and MemoryDeviceRepository.
type DeviceStore interface {
	DeviceTx

	// InUserTx runs fn with every other InUserTx for the same user blocked
	// until fn returns. If fn returns an error nothing it did is kept.
	// Returns domain.ErrUserNotFound for unknown users and
	// domain.ErrStorageConflict when the transaction lost a race.
	InUserTx(ctx context.Context, userID uuid.UUID, fn func(tx DeviceTx) error) error

	GetByID(ctx context.Context, id uint) (*domain.Device, error)
	DeleteOwned(ctx context.Context, userID uuid.UUID, id uint) (*domain.Device, error)
	DeleteByID(ctx context.Context, id uint) (*domain.Device, error)
	DeleteUnusedSince(ctx context.Context, cutoff time.Time) ([]domain.Device, error)
}

// PostgreSQL error codes that mean "retry the transaction".
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translateConflict maps lost races to domain.ErrStorageConflict and
// leaves every other error untouched.
func translateConflict(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrStorageConflict) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", domain.ErrStorageConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %v", domain.ErrStorageConflict, err)
		}
	}
	return err
}

// Models lists every table the repositories use, in migration order.
func Models() []any {
	return []any{
		&domain.User{}, &domain.Device{}, &domain.Profile{},
		&domain.UserCourse{}, &domain.CompletedLesson{}, &domain.UnlockedAvatar{},
		&domain.Course{}, &domain.Lesson{},
		&domain.Plan{}, &domain.PromoCode{}, &domain.PromoActivation{},
	}
}
