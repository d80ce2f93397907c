package usecase

import (
	"context"
	"errors"
	"strings"

	"courseplatform/internal/domain"
	"courseplatform/internal/infrastructure/parser"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCoursePageSize = 20

type CourseStore interface {
	List(ctx context.Context, search, category string, limit, offset int) ([]domain.Course, int64, error)
	GetWithLessons(ctx context.Context, id uuid.UUID) (*domain.Course, error)
	Create(ctx context.Context, c *domain.Course) error
	CreateLessons(ctx context.Context, courseID uuid.UUID, lessons []domain.Lesson) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type FolderParser interface {
	ParseFolder(ctx context.Context, publicLink string) ([]parser.LessonDTO, error)
}

type VideoLinker interface {
	PresignedURL(ctx context.Context, key string) (string, error)
}

type LessonView struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	FileLink  string    `json:"file_link"`
	Order     int       `json:"order"`
	Completed bool      `json:"completed"`
}

type CourseDetail struct {
	Course    domain.Course `json:"course"`
	HasAccess bool          `json:"has_access"`
	Lessons   []LessonView  `json:"lessons"`
}

type CreateCourseInput struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Duration    string `json:"duration"`
	CoverURL    string `json:"cover_url"`
	CloudLink   string `json:"cloud_link"`
}

type CourseUseCase struct {
	repo     CourseStore
	profiles *ProfileUseCase
	parser   FolderParser
	videos   VideoLinker
	logger   *zap.Logger
}

// NewCourseUseCase wires the catalog. videos may be nil when no object
// storage is configured; lessons then keep their cloud links.
func NewCourseUseCase(repo CourseStore, profiles *ProfileUseCase, p FolderParser, videos VideoLinker, logger *zap.Logger) *CourseUseCase {
	return &CourseUseCase{repo: repo, profiles: profiles, parser: p, videos: videos, logger: logger}
}

// List never exposes cloud links.
func (uc *CourseUseCase) List(ctx context.Context, search, category string, limit, offset int) ([]domain.Course, int64, error) {
	if limit <= 0 {
		limit = defaultCoursePageSize
	}
	if offset < 0 {
		offset = 0
	}
	courses, total, err := uc.repo.List(ctx, strings.TrimSpace(search), category, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range courses {
		courses[i].CloudLink = ""
		courses[i].Lessons = nil
	}
	return courses, total, nil
}

// Get returns the course page for userID (uuid.Nil for guests). Lessons
// and the cloud link are only included once the user started the course;
// admins see everything. A live paid plan grants access to the page so
// the course can be started.
func (uc *CourseUseCase) Get(ctx context.Context, courseID, userID uuid.UUID) (*CourseDetail, error) {
	course, err := uc.repo.GetWithLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var hasAccess, started bool
	if userID != uuid.Nil {
		p, err := uc.profiles.GetProfile(ctx, userID)
		switch {
		case err == nil:
			started, err = uc.profiles.HasCourse(ctx, userID, courseID.String())
			if err != nil {
				return nil, err
			}
			hasAccess = started
			if p.IsAdmin() {
				hasAccess, started = true, true
			} else if !hasAccess && p.SubscriptionStatus != domain.StatusRegular && p.SubscriptionStatus != "" {
				hasAccess = !p.SubscriptionExpired(uc.profiles.now())
			}
		case errors.Is(err, domain.ErrProfileNotFound):
		default:
			return nil, err
		}
	}

	detail := &CourseDetail{Course: *course, HasAccess: hasAccess, Lessons: []LessonView{}}
	detail.Course.Lessons = nil
	if !started {
		detail.Course.CloudLink = ""
		return detail, nil
	}

	completed := map[string]bool{}
	ids, err := uc.profiles.CompletedLessons(ctx, userID, courseID.String())
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		completed[id] = true
	}

	for _, l := range course.Lessons {
		detail.Lessons = append(detail.Lessons, LessonView{
			ID:        l.ID,
			Title:     l.Title,
			FileLink:  uc.lessonLink(ctx, l),
			Order:     l.Order,
			Completed: completed[l.ID.String()],
		})
	}
	return detail, nil
}

func (uc *CourseUseCase) lessonLink(ctx context.Context, l domain.Lesson) string {
	if l.VideoKey == "" || uc.videos == nil {
		return l.FileLink
	}
	link, err := uc.videos.PresignedURL(ctx, l.VideoKey)
	if err != nil {
		uc.logger.Error("failed to presign lesson video", zap.String("lesson_id", l.ID.String()), zap.Error(err))
		return l.FileLink
	}
	return link
}

// Create stores the course. A cloud link is parsed into lessons; a broken
// link is logged and the course is kept without lessons.
func (uc *CourseUseCase) Create(ctx context.Context, in CreateCourseInput) (*domain.Course, error) {
	course := &domain.Course{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Duration:    in.Duration,
		CoverURL:    in.CoverURL,
		CloudLink:   in.CloudLink,
	}
	if err := uc.repo.Create(ctx, course); err != nil {
		return nil, err
	}

	if in.CloudLink == "" {
		return course, nil
	}

	dtos, err := uc.parser.ParseFolder(ctx, in.CloudLink)
	if err != nil {
		uc.logger.Warn("failed to parse cloud link", zap.String("course_id", course.ID.String()), zap.Error(err))
		return course, nil
	}
	lessons := make([]domain.Lesson, 0, len(dtos))
	for i, dto := range dtos {
		lessons = append(lessons, domain.Lesson{
			ID:       uuid.New(),
			Title:    dto.Title,
			FileLink: dto.FileLink,
			Order:    i + 1,
		})
	}
	if err := uc.repo.CreateLessons(ctx, course.ID, lessons); err != nil {
		return nil, err
	}
	course.Lessons = lessons
	return course, nil
}

func (uc *CourseUseCase) Delete(ctx context.Context, id uuid.UUID) error {
	return uc.repo.Delete(ctx, id)
}

// Start adds the course to the user's library.
func (uc *CourseUseCase) Start(ctx context.Context, userID, courseID uuid.UUID) error {
	course, err := uc.repo.GetWithLessons(ctx, courseID)
	if err != nil {
		return err
	}
	return uc.profiles.StartCourse(ctx, userID, CourseRef{
		ID:       course.ID.String(),
		Title:    course.Title,
		CoverURL: course.CoverURL,
	})
}

func (uc *CourseUseCase) CompleteLesson(ctx context.Context, userID, courseID, lessonID uuid.UUID) (*LessonProgress, error) {
	course, err := uc.repo.GetWithLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, l := range course.Lessons {
		if l.ID == lessonID {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrLessonNotFound
	}
	return uc.profiles.CompleteLesson(ctx, userID, courseID.String(), lessonID.String(), len(course.Lessons))
}
