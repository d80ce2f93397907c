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

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	return r.Update(ctx, id, map[string]any{"email": email})
}

func (r *ProfileRepository) UpdateUsername(ctx context.Context, id uuid.UUID, username string) error {
	return r.Update(ctx, id, map[string]any{"username": username})
}

func (r *ProfileRepository) UpdateAvatar(ctx context.Context, id uuid.UUID, avatarID int) error {
	return r.Update(ctx, id, map[string]any{"avatar_id": avatarID})
}

// Update writes the given columns. Subscription changes, device policy
// and the other profile fields all go through here.
func (r *ProfileRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.Profile{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// AddCourseSlots is a no-op for unlimited plans.
func (r *ProfileRepository) AddCourseSlots(ctx context.Context, id uuid.UUID, slots int) error {
	return r.db.WithContext(ctx).Model(&domain.Profile{}).
		Where("id = ? AND course_limit <> ?", id, domain.UnlimitedCourses).
		Update("course_limit", gorm.Expr("course_limit + ?", slots)).Error
}

// ChangeBalance adds delta to the balance in a single statement and
// refuses to go below zero.
func (r *ProfileRepository) ChangeBalance(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	var updated []domain.Profile
	res := r.db.WithContext(ctx).Model(&updated).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "balance"}}}).
		Where("id = ? AND balance + ? >= 0", id, delta).
		Update("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if len(updated) == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return 0, err
		}
		return 0, domain.ErrInsufficientBalance
	}
	return updated[0].Balance, nil
}

func (r *ProfileRepository) UnlockAvatar(ctx context.Context, userID uuid.UUID, avatarID int) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.UnlockedAvatar{UserID: userID, AvatarID: avatarID})
	return res.RowsAffected == 1, res.Error
}

func (r *ProfileRepository) GetUnlockedAvatarIDs(ctx context.Context, userID uuid.UUID) ([]int, error) {
	var ids []int
	err := r.db.WithContext(ctx).Model(&domain.UnlockedAvatar{}).
		Where("user_id = ?", userID).
		Order("avatar_id asc").
		Pluck("avatar_id", &ids).Error
	return ids, err
}

// StartCourse is idempotent: starting a course twice keeps the first record.
func (r *ProfileRepository) StartCourse(ctx context.Context, uc *domain.UserCourse) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Where(domain.UserCourse{UserID: uc.UserID, CourseID: uc.CourseID}).
		Attrs(domain.UserCourse{
			Title:          uc.Title,
			CoverURL:       uc.CoverURL,
			Status:         domain.CourseActive,
			LastAccessedAt: now,
			CreatedAt:      now,
		}).
		FirstOrCreate(uc).Error
}

// UpdateProgress never lowers the stored percent and never reopens a
// completed course. It returns the resulting status.
func (r *ProfileRepository) UpdateProgress(ctx context.Context, userID uuid.UUID, courseID string, percent int32) (string, error) {
	var existing domain.UserCourse
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrCourseNotFound
		}
		return "", err
	}

	scope := r.db.WithContext(ctx).Model(&domain.UserCourse{}).
		Where("user_id = ? AND course_id = ?", userID, courseID)

	if existing.Status == domain.CourseCompleted || percent <= existing.ProgressPercent {
		return existing.Status, scope.Update("last_accessed_at", time.Now()).Error
	}

	status := domain.CourseActive
	if percent >= 100 {
		status = domain.CourseCompleted
		percent = 100
	}

	err = scope.Updates(map[string]any{
		"progress_percent": percent,
		"status":           status,
		"last_accessed_at": time.Now(),
	}).Error
	return status, err
}

func (r *ProfileRepository) GetUserCourses(ctx context.Context, userID uuid.UUID) ([]domain.UserCourse, error) {
	var courses []domain.UserCourse
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_accessed_at desc").
		Find(&courses).Error
	return courses, err
}

func (r *ProfileRepository) CountUserCourses(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.UserCourse{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *ProfileRepository) UserHasCourse(ctx context.Context, userID uuid.UUID, courseID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.UserCourse{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *ProfileRepository) GetUserCourse(ctx context.Context, userID uuid.UUID, courseID string) (*domain.UserCourse, error) {
	var uc domain.UserCourse
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&uc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}
	return &uc, nil
}

// AddCompletedLesson reports whether the lesson was newly recorded.
func (r *ProfileRepository) AddCompletedLesson(ctx context.Context, item *domain.CompletedLesson) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(item)
	return res.RowsAffected == 1, res.Error
}

func (r *ProfileRepository) CountCompletedLessons(ctx context.Context, userID uuid.UUID, courseID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.CompletedLesson{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count, err
}

func (r *ProfileRepository) GetCompletedLessonIDs(ctx context.Context, userID uuid.UUID, courseID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.CompletedLesson{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Pluck("lesson_id", &ids).Error
	return ids, err
}

func (r *ProfileRepository) IncrementCompletedCount(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&domain.Profile{}).
		Where("id = ?", id).
		Update("completed_count", gorm.Expr("completed_count + 1")).Error
}

// DowngradeExpired moves every paid profile whose subscription ended
// before now back to the regular plan. A zero end date never expires.
func (r *ProfileRepository) DowngradeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Profile{}).
		Where("subscription_status NOT IN ?", []string{domain.StatusAdmin, domain.StatusRegular}).
		Where("subscription_ends_at > ? AND subscription_ends_at < ?", time.Time{}, now).
		Updates(map[string]any{
			"subscription_status": domain.StatusRegular,
			"device_limit":        1,
			"has_tg_access":       false,
		})
	return res.RowsAffected, res.Error
}
