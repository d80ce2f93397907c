package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"courseplatform/internal/domain"
	"courseplatform/internal/infrastructure/parser"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type courseFixture struct {
	uc       *CourseUseCase
	courses  *fakeCourses
	profiles *fakeProfiles
	parser   *mockParser
	videos   *mockVideos
	userID   uuid.UUID
	course   *domain.Course
}

func newCourseFixture(t *testing.T) *courseFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &courseFixture{
		courses:  newFakeCourses(),
		profiles: newFakeProfiles(),
		parser:   &mockParser{},
		videos:   &mockVideos{},
		userID:   uuid.New(),
	}
	profiles := NewProfileUseCase(f.profiles, logger, 1)
	profiles.now = func() time.Time { return profileNow }
	f.uc = NewCourseUseCase(f.courses, profiles, f.parser, f.videos, logger)

	require.NoError(t, profiles.CreateProfile(context.Background(), f.userID, "anna@example.com", "anna"))

	f.course = &domain.Course{ID: uuid.New(), Title: "Go", CloudLink: "https://cloud.mail.ru/public/abc"}
	require.NoError(t, f.courses.Create(context.Background(), f.course))
	require.NoError(t, f.courses.CreateLessons(context.Background(), f.course.ID, []domain.Lesson{
		{ID: uuid.New(), Title: "Intro", FileLink: "https://cloud/1", Order: 1},
		{ID: uuid.New(), Title: "Goroutines", VideoKey: "go/2.mp4", FileLink: "https://cloud/2", Order: 2},
	}))
	return f
}

func (f *courseFixture) lessonID(i int) uuid.UUID {
	c, _ := f.courses.GetWithLessons(context.Background(), f.course.ID)
	return c.Lessons[i].ID
}

func TestCourseUseCase_ListHidesLinks(t *testing.T) {
	f := newCourseFixture(t)

	courses, total, err := f.uc.List(context.Background(), " go ", "", 0, -5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, courses, 1)
	assert.Empty(t, courses[0].CloudLink)
	assert.Nil(t, courses[0].Lessons)
}

func TestCourseUseCase_GetGuestSeesNoLessons(t *testing.T) {
	f := newCourseFixture(t)

	detail, err := f.uc.Get(context.Background(), f.course.ID, uuid.Nil)
	require.NoError(t, err)
	assert.False(t, detail.HasAccess)
	assert.Empty(t, detail.Lessons)
	assert.Empty(t, detail.Course.CloudLink)

	_, err = f.uc.Get(context.Background(), uuid.New(), uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestCourseUseCase_GetPaidPlanGrantsAccessBeforeStart(t *testing.T) {
	f := newCourseFixture(t)
	require.NoError(t, f.profiles.Update(context.Background(), f.userID, map[string]any{
		"subscription_status":  "pro",
		"subscription_ends_at": profileNow.Add(time.Hour),
	}))

	detail, err := f.uc.Get(context.Background(), f.course.ID, f.userID)
	require.NoError(t, err)
	assert.True(t, detail.HasAccess)
	assert.Empty(t, detail.Lessons)
}

func TestCourseUseCase_GetStartedCourse(t *testing.T) {
	f := newCourseFixture(t)
	ctx := context.Background()
	require.NoError(t, f.profiles.AddCourseSlots(ctx, f.userID, 1))
	require.NoError(t, f.uc.Start(ctx, f.userID, f.course.ID))

	_, err := f.uc.CompleteLesson(ctx, f.userID, f.course.ID, f.lessonID(0))
	require.NoError(t, err)

	f.videos.On("PresignedURL", mock.Anything, "go/2.mp4").Return("https://s3/go/2.mp4?sig", nil).Once()

	detail, err := f.uc.Get(ctx, f.course.ID, f.userID)
	require.NoError(t, err)
	assert.True(t, detail.HasAccess)
	assert.Equal(t, f.course.CloudLink, detail.Course.CloudLink)
	require.Len(t, detail.Lessons, 2)
	assert.True(t, detail.Lessons[0].Completed)
	assert.Equal(t, "https://cloud/1", detail.Lessons[0].FileLink)
	assert.False(t, detail.Lessons[1].Completed)
	assert.Equal(t, "https://s3/go/2.mp4?sig", detail.Lessons[1].FileLink)
	f.videos.AssertExpectations(t)
}

func TestCourseUseCase_PresignFailureFallsBackToCloudLink(t *testing.T) {
	f := newCourseFixture(t)
	ctx := context.Background()
	require.NoError(t, f.profiles.Update(ctx, f.userID, map[string]any{"subscription_status": domain.StatusAdmin}))

	f.videos.On("PresignedURL", mock.Anything, "go/2.mp4").Return("", errors.New("minio down"))

	detail, err := f.uc.Get(ctx, f.course.ID, f.userID)
	require.NoError(t, err)
	require.Len(t, detail.Lessons, 2)
	assert.Equal(t, "https://cloud/2", detail.Lessons[1].FileLink)
}

func TestCourseUseCase_CreateParsesCloudLink(t *testing.T) {
	f := newCourseFixture(t)
	link := "https://cloud.mail.ru/public/xyz"
	f.parser.On("ParseFolder", mock.Anything, link).Return([]parser.LessonDTO{
		{Title: "01.mp4", FileLink: "https://cloud/a"},
		{Title: "02.mp4", FileLink: "https://cloud/b"},
	}, nil).Once()

	course, err := f.uc.Create(context.Background(), CreateCourseInput{Title: "Rust", CloudLink: link})
	require.NoError(t, err)
	require.Len(t, course.Lessons, 2)
	assert.Equal(t, 1, course.Lessons[0].Order)
	assert.Equal(t, 2, course.Lessons[1].Order)

	stored, err := f.courses.GetWithLessons(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lessons, 2)
	f.parser.AssertExpectations(t)
}

func TestCourseUseCase_CreateKeepsCourseWhenParsingFails(t *testing.T) {
	f := newCourseFixture(t)
	f.parser.On("ParseFolder", mock.Anything, mock.Anything).Return(nil, parser.ErrEmptyFolder)

	course, err := f.uc.Create(context.Background(), CreateCourseInput{Title: "Rust", CloudLink: "https://cloud.mail.ru/public/x"})
	require.NoError(t, err)
	assert.Empty(t, course.Lessons)

	_, err = f.courses.GetWithLessons(context.Background(), course.ID)
	assert.NoError(t, err)
}

func TestCourseUseCase_CompleteUnknownLesson(t *testing.T) {
	f := newCourseFixture(t)

	_, err := f.uc.CompleteLesson(context.Background(), f.userID, f.course.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrLessonNotFound)

	_, err = f.uc.CompleteLesson(context.Background(), f.userID, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestCourseUseCase_Delete(t *testing.T) {
	f := newCourseFixture(t)

	require.NoError(t, f.uc.Delete(context.Background(), f.course.ID))
	assert.ErrorIs(t, f.uc.Delete(context.Background(), f.course.ID), domain.ErrCourseNotFound)
}
