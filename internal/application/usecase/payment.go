package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"courseplatform/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentStore interface {
	GetAllPlans(ctx context.Context) ([]domain.Plan, error)
	GetPromoWithPlan(ctx context.Context, code string) (*domain.PromoCode, error)
	Activate(ctx context.Context, userID, code string) error
	Deactivate(ctx context.Context, userID, code string) error
	IsActivatedByUser(ctx context.Context, userID, code string) (bool, error)
}

type RedeemResult struct {
	PlanName  string    `json:"plan_name"`
	Slots     int       `json:"slots,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type PaymentUseCase struct {
	repo     PaymentStore
	profiles *ProfileUseCase
	courses  *CourseUseCase
	logger   *zap.Logger
	now      func() time.Time
}

func NewPaymentUseCase(repo PaymentStore, profiles *ProfileUseCase, courses *CourseUseCase, logger *zap.Logger) *PaymentUseCase {
	return &PaymentUseCase{repo: repo, profiles: profiles, courses: courses, logger: logger, now: time.Now}
}

func (uc *PaymentUseCase) GetPlans(ctx context.Context) ([]domain.Plan, error) {
	return uc.repo.GetAllPlans(ctx)
}

// RedeemPromo applies a promo code. ONE_COURSE codes add course slots;
// every other code applies its plan as the user's subscription, device
// limit included.
func (uc *PaymentUseCase) RedeemPromo(ctx context.Context, userID uuid.UUID, code string) (*RedeemResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	promo, err := uc.repo.GetPromoWithPlan(ctx, code)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	if promo.ExpiresAt != nil && promo.ExpiresAt.Before(now) {
		return nil, domain.ErrPromoExpired
	}
	if promo.MaxUses > 0 && promo.UsedCount >= promo.MaxUses {
		return nil, domain.ErrPromoExhausted
	}
	used, err := uc.repo.IsActivatedByUser(ctx, userID.String(), promo.Code)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, domain.ErrPromoAlreadyUsed
	}

	if err := uc.repo.Activate(ctx, userID.String(), promo.Code); err != nil {
		return nil, err
	}

	res, err := uc.grantPromo(ctx, userID, promo, now)
	if err != nil {
		if derr := uc.repo.Deactivate(ctx, userID.String(), promo.Code); derr != nil {
			uc.logger.Error("failed to roll back promo activation",
				zap.String("code", promo.Code), zap.String("user_id", userID.String()), zap.Error(derr))
		}
		return nil, err
	}

	uc.logger.Info("promo redeemed", zap.String("code", promo.Code), zap.String("user_id", userID.String()))
	return res, nil
}

func (uc *PaymentUseCase) grantPromo(ctx context.Context, userID uuid.UUID, promo *domain.PromoCode, now time.Time) (*RedeemResult, error) {
	if promo.Type == domain.PromoOneCourse {
		slots := promo.ValueInt
		if slots == 0 {
			slots = 1
		}
		if err := uc.profiles.AddCourseSlots(ctx, userID, slots); err != nil {
			return nil, err
		}
		return &RedeemResult{PlanName: "Bonus", Slots: slots}, nil
	}

	plan := promo.Plan
	days := plan.DefaultDurationDays
	if promo.OverrideDuration > 0 {
		days = promo.OverrideDuration
	}
	expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)

	err := uc.profiles.SetSubscription(ctx, userID, Subscription{
		Plan:        plan.Name,
		CourseLimit: plan.CourseLimit,
		DeviceLimit: plan.DeviceLimit,
		TgAccess:    plan.IsTgAccess,
		EndsAt:      expiresAt,
	})
	if err != nil {
		return nil, err
	}
	return &RedeemResult{PlanName: plan.Name, ExpiresAt: expiresAt}, nil
}

// PurchaseItem pays for a course or an avatar from the balance. The
// balance is refunded when the item cannot be granted.
func (uc *PaymentUseCase) PurchaseItem(ctx context.Context, userID uuid.UUID, itemType, itemID string) (int, error) {
	var (
		price int
		grant func() error
	)

	switch itemType {
	case domain.ItemCourse:
		courseID, err := uuid.Parse(itemID)
		if err != nil {
			return 0, domain.ErrInvalidItemID
		}
		price = domain.CoursePurchasePrice
		grant = func() error {
			if err := uc.profiles.AddCourseSlots(ctx, userID, 1); err != nil {
				return err
			}
			if err := uc.courses.Start(ctx, userID, courseID); err != nil {
				_ = uc.profiles.AddCourseSlots(ctx, userID, -1)
				return err
			}
			return nil
		}

	case domain.ItemAvatar:
		avatarID, err := strconv.Atoi(itemID)
		if err != nil {
			return 0, domain.ErrInvalidItemID
		}
		if avatarID < minAvatarID || avatarID > maxAvatarID {
			return 0, domain.ErrInvalidAvatar
		}
		price = domain.AvatarPurchasePrice
		grant = func() error {
			_, err := uc.profiles.UnlockAvatar(ctx, userID, avatarID)
			return err
		}

	default:
		return 0, domain.ErrUnknownItemType
	}

	balance, err := uc.profiles.ChangeBalance(ctx, userID, -price)
	if err != nil {
		return 0, err
	}

	if err := grant(); err != nil {
		if _, rerr := uc.profiles.ChangeBalance(ctx, userID, price); rerr != nil {
			uc.logger.Error("failed to refund purchase",
				zap.String("user_id", userID.String()), zap.Int("amount", price), zap.Error(rerr))
			return 0, errors.Join(err, rerr)
		}
		return 0, err
	}
	return balance, nil
}
