package repository

import (
	"context"
	"errors"
	"time"

	"courseplatform/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// InUserTx locks the user's row for the duration of the transaction, so
// admissions for one user run one at a time while other users proceed.
func (r *DeviceRepository) InUserTx(ctx context.Context, userID uuid.UUID, fn func(tx DeviceTx) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&user, "id = ?", userID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		return fn(&DeviceRepository{db: tx})
	})
	return translateConflict(err)
}

func (r *DeviceRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Device, error) {
	var devices []domain.Device
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_used_at desc, id desc").
		Find(&devices).Error
	return devices, err
}

func (r *DeviceRepository) Create(ctx context.Context, device *domain.Device) error {
	return translateConflict(r.db.WithContext(ctx).Create(device).Error)
}

func (r *DeviceRepository) Touch(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Device{}).
		Where("id = ?", id).
		Update("last_used_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

func (r *DeviceRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.Device{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

func (r *DeviceRepository) GetByID(ctx context.Context, id uint) (*domain.Device, error) {
	var device domain.Device
	err := r.db.WithContext(ctx).First(&device, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (r *DeviceRepository) DeleteOwned(ctx context.Context, userID uuid.UUID, id uint) (*domain.Device, error) {
	return r.deleteReturning(ctx, r.db.Where("id = ? AND user_id = ?", id, userID))
}

func (r *DeviceRepository) DeleteByID(ctx context.Context, id uint) (*domain.Device, error) {
	return r.deleteReturning(ctx, r.db.Where("id = ?", id))
}

func (r *DeviceRepository) deleteReturning(ctx context.Context, scope *gorm.DB) (*domain.Device, error) {
	var deleted []domain.Device
	res := scope.WithContext(ctx).
		Clauses(clause.Returning{}).
		Delete(&deleted)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(deleted) == 0 {
		return nil, domain.ErrDeviceNotFound
	}
	return &deleted[0], nil
}

func (r *DeviceRepository) DeleteUnusedSince(ctx context.Context, cutoff time.Time) ([]domain.Device, error) {
	var deleted []domain.Device
	err := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("last_used_at < ?", cutoff).
		Delete(&deleted).Error
	return deleted, err
}
