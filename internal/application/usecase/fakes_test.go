package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"courseplatform/internal/domain"
	"courseplatform/internal/infrastructure/cache"
	"courseplatform/internal/infrastructure/parser"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// fakeProfiles is a map-backed ProfileStore.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*domain.Profile
	courses  map[uuid.UUID]map[string]*domain.UserCourse
	lessons  map[string]bool
	avatars  map[uuid.UUID]map[int]bool
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles: map[uuid.UUID]*domain.Profile{},
		courses:  map[uuid.UUID]map[string]*domain.UserCourse{},
		lessons:  map[string]bool{},
		avatars:  map[uuid.UUID]map[int]bool{},
	}
}

func (f *fakeProfiles) Create(_ context.Context, p *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.profiles[p.ID] = &cp
	return nil
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) with(id uuid.UUID, fn func(p *domain.Profile)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	fn(p)
	return nil
}

func (f *fakeProfiles) UpdateEmail(_ context.Context, id uuid.UUID, email string) error {
	return f.with(id, func(p *domain.Profile) { p.Email = email })
}

func (f *fakeProfiles) UpdateUsername(_ context.Context, id uuid.UUID, username string) error {
	return f.with(id, func(p *domain.Profile) { p.Username = username })
}

func (f *fakeProfiles) UpdateAvatar(_ context.Context, id uuid.UUID, avatarID int) error {
	return f.with(id, func(p *domain.Profile) { p.AvatarID = avatarID })
}

func (f *fakeProfiles) Update(_ context.Context, id uuid.UUID, updates map[string]any) error {
	return f.with(id, func(p *domain.Profile) {
		for k, v := range updates {
			switch k {
			case "subscription_status":
				p.SubscriptionStatus = v.(string)
			case "course_limit":
				p.CourseLimit = v.(int)
			case "device_limit":
				p.DeviceLimit = v.(int)
			case "has_tg_access":
				p.HasTgAccess = v.(bool)
			case "subscription_ends_at":
				p.SubscriptionEndsAt = v.(time.Time)
			case "evict_oldest_device":
				p.EvictOldestDevice = v.(bool)
			}
		}
	})
}

func (f *fakeProfiles) AddCourseSlots(_ context.Context, id uuid.UUID, slots int) error {
	return f.with(id, func(p *domain.Profile) {
		if p.CourseLimit != domain.UnlimitedCourses {
			p.CourseLimit += slots
		}
	})
}

func (f *fakeProfiles) ChangeBalance(_ context.Context, id uuid.UUID, delta int) (int, error) {
	var (
		balance int
		err     error
	)
	werr := f.with(id, func(p *domain.Profile) {
		if p.Balance+delta < 0 {
			err = domain.ErrInsufficientBalance
			return
		}
		p.Balance += delta
		balance = p.Balance
	})
	if werr != nil {
		return 0, werr
	}
	return balance, err
}

func (f *fakeProfiles) UnlockAvatar(_ context.Context, userID uuid.UUID, avatarID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.avatars[userID] == nil {
		f.avatars[userID] = map[int]bool{}
	}
	if f.avatars[userID][avatarID] {
		return false, nil
	}
	f.avatars[userID][avatarID] = true
	return true, nil
}

func (f *fakeProfiles) GetUnlockedAvatarIDs(_ context.Context, userID uuid.UUID) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int
	for id := range f.avatars[userID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (f *fakeProfiles) StartCourse(_ context.Context, uc *domain.UserCourse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.courses[uc.UserID] == nil {
		f.courses[uc.UserID] = map[string]*domain.UserCourse{}
	}
	if _, ok := f.courses[uc.UserID][uc.CourseID]; !ok {
		cp := *uc
		cp.Status = domain.CourseActive
		f.courses[uc.UserID][uc.CourseID] = &cp
	}
	return nil
}

func (f *fakeProfiles) UpdateProgress(_ context.Context, userID uuid.UUID, courseID string, percent int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[userID][courseID]
	if !ok {
		return "", domain.ErrCourseNotFound
	}
	if c.Status == domain.CourseCompleted || percent <= c.ProgressPercent {
		return c.Status, nil
	}
	c.ProgressPercent = percent
	if percent >= 100 {
		c.ProgressPercent = 100
		c.Status = domain.CourseCompleted
	}
	return c.Status, nil
}

func (f *fakeProfiles) GetUserCourses(_ context.Context, userID uuid.UUID) ([]domain.UserCourse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.UserCourse
	for _, c := range f.courses[userID] {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

func (f *fakeProfiles) CountUserCourses(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.courses[userID])), nil
}

func (f *fakeProfiles) UserHasCourse(_ context.Context, userID uuid.UUID, courseID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.courses[userID][courseID]
	return ok, nil
}

func (f *fakeProfiles) GetUserCourse(_ context.Context, userID uuid.UUID, courseID string) (*domain.UserCourse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[userID][courseID]
	if !ok {
		return nil, domain.ErrCourseNotFound
	}
	cp := *c
	return &cp, nil
}

func lessonKey(userID uuid.UUID, courseID, lessonID string) string {
	return userID.String() + "/" + courseID + "/" + lessonID
}

func (f *fakeProfiles) AddCompletedLesson(_ context.Context, item *domain.CompletedLesson) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := lessonKey(item.UserID, item.CourseID, item.LessonID)
	if f.lessons[k] {
		return false, nil
	}
	f.lessons[k] = true
	return true, nil
}

func (f *fakeProfiles) CountCompletedLessons(ctx context.Context, userID uuid.UUID, courseID string) (int64, error) {
	ids, err := f.GetCompletedLessonIDs(ctx, userID, courseID)
	return int64(len(ids)), err
}

func (f *fakeProfiles) GetCompletedLessonIDs(_ context.Context, userID uuid.UUID, courseID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := lessonKey(userID, courseID, "")
	var ids []string
	for k := range f.lessons {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			ids = append(ids, k[len(prefix):])
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeProfiles) IncrementCompletedCount(_ context.Context, id uuid.UUID) error {
	return f.with(id, func(p *domain.Profile) { p.CompletedCount++ })
}

func (f *fakeProfiles) DowngradeExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.profiles {
		if p.SubscriptionExpired(now) {
			p.SubscriptionStatus = domain.StatusRegular
			p.DeviceLimit = 1
			p.HasTgAccess = false
			n++
		}
	}
	return n, nil
}

// fakeTokens is a map-backed TokenStore that also revokes device sessions.
type fakeTokens struct {
	mu      sync.Mutex
	refresh map[string]cache.Session
	reset   map[string]uuid.UUID
	changes map[string]cache.EmailChange
	revoked []string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{
		refresh: map[string]cache.Session{},
		reset:   map[string]uuid.UUID{},
		changes: map[string]cache.EmailChange{},
	}
}

func (f *fakeTokens) SaveRefresh(_ context.Context, s cache.Session, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[token] = s
	return nil
}

func (f *fakeTokens) CheckRefresh(_ context.Context, token string) (cache.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.refresh[token]
	if !ok {
		return cache.Session{}, domain.ErrTokenRevoked
	}
	return s, nil
}

func (f *fakeTokens) DeleteRefresh(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, token)
	return nil
}

func (f *fakeTokens) RevokeDevice(_ context.Context, userID uuid.UUID, fingerprint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for t, s := range f.refresh {
		if s.UserID == userID && s.Fingerprint == fingerprint {
			delete(f.refresh, t)
		}
	}
	f.revoked = append(f.revoked, fingerprint)
	return nil
}

func (f *fakeTokens) SaveResetToken(_ context.Context, token string, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset[token] = userID
	return nil
}

func (f *fakeTokens) GetResetToken(_ context.Context, token string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.reset[token]
	if !ok {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return id, nil
}

func (f *fakeTokens) DeleteResetToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reset, token)
	return nil
}

func (f *fakeTokens) SaveEmailChange(_ context.Context, token string, ec cache.EmailChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes[token] = ec
	return nil
}

func (f *fakeTokens) TakeEmailChange(_ context.Context, token string) (cache.EmailChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ec, ok := f.changes[token]
	if !ok {
		return cache.EmailChange{}, domain.ErrInvalidToken
	}
	delete(f.changes, token)
	return ec, nil
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendResetEmail(ctx context.Context, to, token string) error {
	return m.Called(ctx, to, token).Error(0)
}

func (m *mockMailer) SendEmailChangeConfirmation(ctx context.Context, to, token string) error {
	return m.Called(ctx, to, token).Error(0)
}

// fakeCourses is a map-backed CourseStore.
type fakeCourses struct {
	mu      sync.Mutex
	courses map[uuid.UUID]*domain.Course
}

func newFakeCourses() *fakeCourses {
	return &fakeCourses{courses: map[uuid.UUID]*domain.Course{}}
}

func (f *fakeCourses) List(_ context.Context, search, category string, limit, offset int) ([]domain.Course, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Course
	for _, c := range f.courses {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeCourses) GetWithLessons(_ context.Context, id uuid.UUID) (*domain.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, domain.ErrCourseNotFound
	}
	cp := *c
	cp.Lessons = append([]domain.Lesson(nil), c.Lessons...)
	return &cp, nil
}

func (f *fakeCourses) Create(_ context.Context, c *domain.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.courses[c.ID] = &cp
	return nil
}

func (f *fakeCourses) CreateLessons(_ context.Context, courseID uuid.UUID, lessons []domain.Lesson) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[courseID]
	if !ok {
		return domain.ErrCourseNotFound
	}
	for _, l := range lessons {
		l.CourseID = courseID
		c.Lessons = append(c.Lessons, l)
	}
	return nil
}

func (f *fakeCourses) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courses[id]; !ok {
		return domain.ErrCourseNotFound
	}
	delete(f.courses, id)
	return nil
}

type mockParser struct {
	mock.Mock
}

func (m *mockParser) ParseFolder(ctx context.Context, link string) ([]parser.LessonDTO, error) {
	args := m.Called(ctx, link)
	lessons, _ := args.Get(0).([]parser.LessonDTO)
	return lessons, args.Error(1)
}

type mockVideos struct {
	mock.Mock
}

func (m *mockVideos) PresignedURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) GetAllPlans(ctx context.Context) ([]domain.Plan, error) {
	args := m.Called(ctx)
	plans, _ := args.Get(0).([]domain.Plan)
	return plans, args.Error(1)
}

func (m *mockPayments) GetPromoWithPlan(ctx context.Context, code string) (*domain.PromoCode, error) {
	args := m.Called(ctx, code)
	promo, _ := args.Get(0).(*domain.PromoCode)
	return promo, args.Error(1)
}

func (m *mockPayments) Activate(ctx context.Context, userID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *mockPayments) Deactivate(ctx context.Context, userID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *mockPayments) IsActivatedByUser(ctx context.Context, userID, code string) (bool, error) {
	args := m.Called(ctx, userID, code)
	return args.Bool(0), args.Error(1)
}
