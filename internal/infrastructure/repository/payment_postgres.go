package repository

import (
	"context"
	"errors"
	"strings"

	"courseplatform/internal/domain"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) GetAllPlans(ctx context.Context) ([]domain.Plan, error) {
	var plans []domain.Plan
	err := r.db.WithContext(ctx).Order("price asc").Find(&plans).Error
	return plans, err
}

// GetPromoWithPlan looks the code up case-insensitively.
func (r *PaymentRepository) GetPromoWithPlan(ctx context.Context, code string) (*domain.PromoCode, error) {
	var promo domain.PromoCode
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPromoNotFound
		}
		return nil, err
	}
	return &promo, nil
}

// Activate records that userID used the code and counts the use, both or
// neither. The usage limit is checked in the UPDATE itself so concurrent
// activations cannot overshoot it.
func (r *PaymentRepository) Activate(ctx context.Context, userID, code string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&domain.PromoActivation{UserID: userID, Code: code}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrPromoAlreadyUsed
			}
			return err
		}

		res := tx.Model(&domain.PromoCode{}).
			Where("code = ? AND (max_uses = 0 OR used_count < max_uses)", code).
			Update("used_count", gorm.Expr("used_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrPromoExhausted
		}
		return nil
	})
}

// Deactivate undoes Activate when the grant could not be applied.
func (r *PaymentRepository) Deactivate(ctx context.Context, userID, code string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.PromoActivation{}, "user_id = ? AND code = ?", userID, code)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		return tx.Model(&domain.PromoCode{}).
			Where("code = ? AND used_count > 0", code).
			Update("used_count", gorm.Expr("used_count - 1")).Error
	})
}

func (r *PaymentRepository) IsActivatedByUser(ctx context.Context, userID, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PromoActivation{}).
		Where("user_id = ? AND code = ?", userID, code).
		Count(&count).Error
	return count > 0, err
}
