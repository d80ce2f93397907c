package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"courseplatform/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type paymentFixture struct {
	uc       *PaymentUseCase
	repo     *mockPayments
	profiles *fakeProfiles
	courses  *fakeCourses
	userID   uuid.UUID
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &paymentFixture{
		repo:     &mockPayments{},
		profiles: newFakeProfiles(),
		courses:  newFakeCourses(),
		userID:   uuid.New(),
	}
	profiles := NewProfileUseCase(f.profiles, logger, 1)
	profiles.now = func() time.Time { return profileNow }
	courses := NewCourseUseCase(f.courses, profiles, &mockParser{}, nil, logger)
	f.uc = NewPaymentUseCase(f.repo, profiles, courses, logger)
	f.uc.now = func() time.Time { return profileNow }

	require.NoError(t, profiles.CreateProfile(context.Background(), f.userID, "anna@example.com", "anna"))
	return f
}

func (f *paymentFixture) profile(t *testing.T) *domain.Profile {
	t.Helper()
	p, err := f.profiles.GetByID(context.Background(), f.userID)
	require.NoError(t, err)
	return p
}

func TestPaymentUseCase_RedeemSubscription(t *testing.T) {
	f := newPaymentFixture(t)
	uid := f.userID.String()
	promo := &domain.PromoCode{
		Code:             "SPRING",
		Type:             domain.PromoSubscription,
		OverrideDuration: 10,
		Plan: domain.Plan{
			Name: "pro", CourseLimit: domain.UnlimitedCourses, DeviceLimit: 3,
			IsTgAccess: true, DefaultDurationDays: 30,
		},
	}
	f.repo.On("GetPromoWithPlan", mock.Anything, "SPRING").Return(promo, nil)
	f.repo.On("IsActivatedByUser", mock.Anything, uid, "SPRING").Return(false, nil)
	f.repo.On("Activate", mock.Anything, uid, "SPRING").Return(nil)

	res, err := f.uc.RedeemPromo(context.Background(), f.userID, " spring ")
	require.NoError(t, err)
	assert.Equal(t, "pro", res.PlanName)
	assert.Equal(t, profileNow.Add(10*24*time.Hour), res.ExpiresAt)

	p := f.profile(t)
	assert.Equal(t, "pro", p.SubscriptionStatus)
	assert.Equal(t, 3, p.DeviceLimit)
	assert.Equal(t, domain.UnlimitedCourses, p.CourseLimit)
	assert.True(t, p.HasTgAccess)
	f.repo.AssertExpectations(t)
}

func TestPaymentUseCase_RedeemOneCourse(t *testing.T) {
	f := newPaymentFixture(t)
	uid := f.userID.String()
	f.repo.On("GetPromoWithPlan", mock.Anything, "BONUS").
		Return(&domain.PromoCode{Code: "BONUS", Type: domain.PromoOneCourse, ValueInt: 2}, nil)
	f.repo.On("IsActivatedByUser", mock.Anything, uid, "BONUS").Return(false, nil)
	f.repo.On("Activate", mock.Anything, uid, "BONUS").Return(nil)

	res, err := f.uc.RedeemPromo(context.Background(), f.userID, "bonus")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Slots)
	assert.Equal(t, 2, f.profile(t).CourseLimit)
}

func TestPaymentUseCase_RedeemRejections(t *testing.T) {
	past := profileNow.Add(-time.Hour)
	tests := []struct {
		name    string
		promo   *domain.PromoCode
		findErr error
		used    bool
		want    error
	}{
		{name: "unknown", findErr: domain.ErrPromoNotFound, want: domain.ErrPromoNotFound},
		{name: "expired", promo: &domain.PromoCode{Code: "X", ExpiresAt: &past}, want: domain.ErrPromoExpired},
		{name: "exhausted", promo: &domain.PromoCode{Code: "X", MaxUses: 5, UsedCount: 5}, want: domain.ErrPromoExhausted},
		{name: "already used", promo: &domain.PromoCode{Code: "X"}, used: true, want: domain.ErrPromoAlreadyUsed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			f.repo.On("GetPromoWithPlan", mock.Anything, "X").Return(tt.promo, tt.findErr)
			f.repo.On("IsActivatedByUser", mock.Anything, mock.Anything, mock.Anything).Return(tt.used, nil)

			_, err := f.uc.RedeemPromo(context.Background(), f.userID, "x")
			assert.ErrorIs(t, err, tt.want)
			f.repo.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentUseCase_RedeemRollsBackOnGrantFailure(t *testing.T) {
	f := newPaymentFixture(t)
	uid := f.userID.String()
	// A plan without devices cannot be applied.
	f.repo.On("GetPromoWithPlan", mock.Anything, "BROKEN").
		Return(&domain.PromoCode{Code: "BROKEN", Type: domain.PromoSubscription, Plan: domain.Plan{Name: "broken"}}, nil)
	f.repo.On("IsActivatedByUser", mock.Anything, uid, "BROKEN").Return(false, nil)
	f.repo.On("Activate", mock.Anything, uid, "BROKEN").Return(nil)
	f.repo.On("Deactivate", mock.Anything, uid, "BROKEN").Return(nil).Once()

	_, err := f.uc.RedeemPromo(context.Background(), f.userID, "BROKEN")
	assert.ErrorIs(t, err, domain.ErrInvalidCap)
	f.repo.AssertExpectations(t)
}

func TestPaymentUseCase_PurchaseAvatar(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.uc.PurchaseItem(ctx, f.userID, domain.ItemAvatar, "8")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = f.profiles.ChangeBalance(ctx, f.userID, 300)
	require.NoError(t, err)

	balance, err := f.uc.PurchaseItem(ctx, f.userID, domain.ItemAvatar, "8")
	require.NoError(t, err)
	assert.Equal(t, 300-domain.AvatarPurchasePrice, balance)

	ids, err := f.profiles.GetUnlockedAvatarIDs(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, ids)
}

func TestPaymentUseCase_PurchaseCourse(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	course := &domain.Course{ID: uuid.New(), Title: "Go"}
	require.NoError(t, f.courses.Create(ctx, course))
	_, err := f.profiles.ChangeBalance(ctx, f.userID, 1500)
	require.NoError(t, err)

	balance, err := f.uc.PurchaseItem(ctx, f.userID, domain.ItemCourse, course.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 500, balance)

	has, err := f.profiles.UserHasCourse(ctx, f.userID, course.ID.String())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPaymentUseCase_PurchaseRefundsWhenGrantFails(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	_, err := f.profiles.ChangeBalance(ctx, f.userID, 1500)
	require.NoError(t, err)

	_, err = f.uc.PurchaseItem(ctx, f.userID, domain.ItemCourse, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)

	p := f.profile(t)
	assert.Equal(t, 1500, p.Balance)
	assert.Zero(t, p.CourseLimit)
}

func TestPaymentUseCase_PurchaseValidation(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.uc.PurchaseItem(ctx, f.userID, "BADGE", "1")
	assert.ErrorIs(t, err, domain.ErrUnknownItemType)
	_, err = f.uc.PurchaseItem(ctx, f.userID, domain.ItemCourse, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrInvalidItemID)
	_, err = f.uc.PurchaseItem(ctx, f.userID, domain.ItemAvatar, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidItemID)
	_, err = f.uc.PurchaseItem(ctx, f.userID, domain.ItemAvatar, "99")
	assert.ErrorIs(t, err, domain.ErrInvalidAvatar)
}

func TestPaymentUseCase_GetPlans(t *testing.T) {
	f := newPaymentFixture(t)
	f.repo.On("GetAllPlans", mock.Anything).Return(nil, errors.New("db down")).Once()

	_, err := f.uc.GetPlans(context.Background())
	assert.Error(t, err)
}
