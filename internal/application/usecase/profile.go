package usecase

import (
	"context"
	"strings"
	"time"

	"courseplatform/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minAvatarID      = 1
	maxAvatarID      = 10
	freeAvatars      = 5
	courseCompletion = 50 // balance reward for finishing a course
)

type ProfileStore interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
	UpdateUsername(ctx context.Context, id uuid.UUID, username string) error
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatarID int) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AddCourseSlots(ctx context.Context, id uuid.UUID, slots int) error
	ChangeBalance(ctx context.Context, id uuid.UUID, delta int) (int, error)
	UnlockAvatar(ctx context.Context, userID uuid.UUID, avatarID int) (bool, error)
	GetUnlockedAvatarIDs(ctx context.Context, userID uuid.UUID) ([]int, error)
	StartCourse(ctx context.Context, uc *domain.UserCourse) error
	UpdateProgress(ctx context.Context, userID uuid.UUID, courseID string, percent int32) (string, error)
	GetUserCourses(ctx context.Context, userID uuid.UUID) ([]domain.UserCourse, error)
	CountUserCourses(ctx context.Context, userID uuid.UUID) (int64, error)
	UserHasCourse(ctx context.Context, userID uuid.UUID, courseID string) (bool, error)
	GetUserCourse(ctx context.Context, userID uuid.UUID, courseID string) (*domain.UserCourse, error)
	AddCompletedLesson(ctx context.Context, item *domain.CompletedLesson) (bool, error)
	CountCompletedLessons(ctx context.Context, userID uuid.UUID, courseID string) (int64, error)
	GetCompletedLessonIDs(ctx context.Context, userID uuid.UUID, courseID string) ([]string, error)
	IncrementCompletedCount(ctx context.Context, id uuid.UUID) error
	DowngradeExpired(ctx context.Context, now time.Time) (int64, error)
}

// ProfileView is the profile page: the stored profile plus what is
// derived from courses and avatars.
type ProfileView struct {
	domain.Profile
	CoursesUsed       int64               `json:"courses_used"`
	ActiveCourses     []domain.UserCourse `json:"active_courses"`
	CompletedCourses  []domain.UserCourse `json:"completed_courses"`
	UnlockedAvatarIDs []int               `json:"unlocked_avatar_ids"`
}

type Subscription struct {
	Plan        string
	CourseLimit int
	DeviceLimit int
	TgAccess    bool
	EndsAt      time.Time
}

type CourseRef struct {
	ID       string
	Title    string
	CoverURL string
}

type LessonProgress struct {
	Percent int32  `json:"percent"`
	Status  string `json:"status"`
}

type ProfileUseCase struct {
	repo             ProfileStore
	logger           *zap.Logger
	defaultDeviceCap int
	now              func() time.Time
}

func NewProfileUseCase(repo ProfileStore, logger *zap.Logger, defaultDeviceCap int) *ProfileUseCase {
	return &ProfileUseCase{repo: repo, logger: logger, defaultDeviceCap: defaultDeviceCap, now: time.Now}
}

func (uc *ProfileUseCase) CreateProfile(ctx context.Context, id uuid.UUID, email, username string) error {
	return uc.repo.Create(ctx, &domain.Profile{
		ID:                 id,
		Email:              email,
		Username:           username,
		AvatarID:           minAvatarID,
		SubscriptionStatus: domain.StatusRegular,
		DeviceLimit:        uc.defaultDeviceCap,
	})
}

func (uc *ProfileUseCase) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *ProfileUseCase) GetProfileView(ctx context.Context, id uuid.UUID) (*ProfileView, error) {
	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &ProfileView{Profile: *p}

	courses, err := uc.repo.GetUserCourses(ctx, id)
	if err != nil {
		return nil, err
	}
	view.CoursesUsed = int64(len(courses))
	for _, c := range courses {
		if c.Status == domain.CourseCompleted {
			view.CompletedCourses = append(view.CompletedCourses, c)
		} else {
			view.ActiveCourses = append(view.ActiveCourses, c)
		}
	}

	unlocked, err := uc.repo.GetUnlockedAvatarIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := minAvatarID; i <= freeAvatars; i++ {
		view.UnlockedAvatarIDs = append(view.UnlockedAvatarIDs, i)
	}
	for _, a := range unlocked {
		if a > freeAvatars {
			view.UnlockedAvatarIDs = append(view.UnlockedAvatarIDs, a)
		}
	}
	return view, nil
}

func (uc *ProfileUseCase) SyncEmail(ctx context.Context, id uuid.UUID, email string) error {
	return uc.repo.UpdateEmail(ctx, id, email)
}

func (uc *ProfileUseCase) UpdateUsername(ctx context.Context, id uuid.UUID, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.ErrInvalidUsername
	}
	return uc.repo.UpdateUsername(ctx, id, username)
}

func (uc *ProfileUseCase) SetAvatar(ctx context.Context, id uuid.UUID, avatarID int) error {
	if avatarID < minAvatarID || avatarID > maxAvatarID {
		return domain.ErrInvalidAvatar
	}
	return uc.repo.UpdateAvatar(ctx, id, avatarID)
}

func (uc *ProfileUseCase) UnlockAvatar(ctx context.Context, id uuid.UUID, avatarID int) (bool, error) {
	if avatarID < minAvatarID || avatarID > maxAvatarID {
		return false, domain.ErrInvalidAvatar
	}
	return uc.repo.UnlockAvatar(ctx, id, avatarID)
}

// SetSubscription applies a plan. DeviceLimit becomes the user's device
// admission cap.
func (uc *ProfileUseCase) SetSubscription(ctx context.Context, id uuid.UUID, s Subscription) error {
	if s.DeviceLimit < 1 {
		return domain.ErrInvalidCap
	}
	return uc.repo.Update(ctx, id, map[string]any{
		"subscription_status":  s.Plan,
		"course_limit":         s.CourseLimit,
		"device_limit":         s.DeviceLimit,
		"has_tg_access":        s.TgAccess,
		"subscription_ends_at": s.EndsAt,
	})
}

// SetDevicePolicy is the administrator override of the user's cap and
// eviction behaviour.
func (uc *ProfileUseCase) SetDevicePolicy(ctx context.Context, id uuid.UUID, deviceLimit int, evictOldest bool) error {
	if deviceLimit < 1 {
		return domain.ErrInvalidCap
	}
	return uc.repo.Update(ctx, id, map[string]any{
		"device_limit":        deviceLimit,
		"evict_oldest_device": evictOldest,
	})
}

func (uc *ProfileUseCase) AddCourseSlots(ctx context.Context, id uuid.UUID, slots int) error {
	return uc.repo.AddCourseSlots(ctx, id, slots)
}

func (uc *ProfileUseCase) ChangeBalance(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	return uc.repo.ChangeBalance(ctx, id, delta)
}

// StartCourse adds the course to the user's library. Admins skip every
// check; everyone else needs a live subscription and a free course slot.
func (uc *ProfileUseCase) StartCourse(ctx context.Context, id uuid.UUID, course CourseRef) error {
	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !p.IsAdmin() {
		if p.SubscriptionExpired(uc.now()) {
			return domain.ErrSubscriptionExpired
		}

		has, err := uc.repo.UserHasCourse(ctx, id, course.ID)
		if err != nil {
			return err
		}
		if has {
			return nil
		}

		if p.CourseLimit != domain.UnlimitedCourses {
			used, err := uc.repo.CountUserCourses(ctx, id)
			if err != nil {
				return err
			}
			if int(used) >= p.CourseLimit {
				return domain.ErrCourseLimitReached
			}
		}
	}

	return uc.repo.StartCourse(ctx, &domain.UserCourse{
		UserID:   id,
		CourseID: course.ID,
		Title:    course.Title,
		CoverURL: course.CoverURL,
		Status:   domain.CourseActive,
	})
}

func (uc *ProfileUseCase) HasCourse(ctx context.Context, id uuid.UUID, courseID string) (bool, error) {
	return uc.repo.UserHasCourse(ctx, id, courseID)
}

// CompleteLesson marks the lesson as done and recomputes course progress.
// Repeating a lesson changes nothing; finishing a course for the first
// time pays the completion reward.
func (uc *ProfileUseCase) CompleteLesson(ctx context.Context, id uuid.UUID, courseID, lessonID string, totalLessons int) (*LessonProgress, error) {
	prev, err := uc.repo.GetUserCourse(ctx, id, courseID)
	if err != nil {
		return nil, err
	}

	if _, err := uc.repo.AddCompletedLesson(ctx, &domain.CompletedLesson{
		UserID:   id,
		CourseID: courseID,
		LessonID: lessonID,
	}); err != nil {
		return nil, err
	}

	done, err := uc.repo.CountCompletedLessons(ctx, id, courseID)
	if err != nil {
		return nil, err
	}
	var percent int32
	if totalLessons > 0 {
		percent = int32(done * 100 / int64(totalLessons))
	}
	if percent > 100 {
		percent = 100
	}

	status, err := uc.repo.UpdateProgress(ctx, id, courseID, percent)
	if err != nil {
		return nil, err
	}

	if prev.Status != domain.CourseCompleted && status == domain.CourseCompleted {
		if _, err := uc.repo.ChangeBalance(ctx, id, courseCompletion); err != nil {
			uc.logger.Error("failed to pay completion reward", zap.String("user_id", id.String()), zap.Error(err))
		}
		if err := uc.repo.IncrementCompletedCount(ctx, id); err != nil {
			uc.logger.Error("failed to count completed course", zap.String("user_id", id.String()), zap.Error(err))
		}
	}

	if percent < prev.ProgressPercent {
		percent = prev.ProgressPercent
	}
	return &LessonProgress{Percent: percent, Status: status}, nil
}

func (uc *ProfileUseCase) CompletedLessons(ctx context.Context, id uuid.UUID, courseID string) ([]string, error) {
	return uc.repo.GetCompletedLessonIDs(ctx, id, courseID)
}

// DowngradeExpired returns paid profiles whose plan ended to the regular
// plan with a single device.
func (uc *ProfileUseCase) DowngradeExpired(ctx context.Context) (int64, error) {
	n, err := uc.repo.DowngradeExpired(ctx, uc.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.logger.Info("expired subscriptions downgraded", zap.Int64("count", n))
	}
	return n, nil
}
