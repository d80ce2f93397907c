package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courseplatform/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	courseListTTL   = 10 * time.Minute
	courseDetailTTL = time.Hour

	// Bumped on every catalog change; list keys embed it so stale pages
	// are never read again and simply expire.
	courseListVersionKey = "courses:list:version"
)

// CourseRepository reads courses from postgres through a redis cache.
// A nil redis client disables caching.
type CourseRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewCourseRepository(db *gorm.DB, rdb *redis.Client) *CourseRepository {
	return &CourseRepository{db: db, rdb: rdb}
}

type coursePage struct {
	Courses []domain.Course
	Total   int64
}

func (r *CourseRepository) List(ctx context.Context, search, category string, limit, offset int) ([]domain.Course, int64, error) {
	key := r.listKey(ctx, search, category, limit, offset)

	var page coursePage
	if r.cached(ctx, key, &page) {
		return page.Courses, page.Total, nil
	}

	query := r.db.WithContext(ctx).Model(&domain.Course{})
	if search != "" {
		query = query.Where("title ILIKE ?", "%"+search+"%")
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Count(&page.Total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Limit(limit).Offset(offset).Order("created_at desc").Find(&page.Courses).Error
	if err != nil {
		return nil, 0, err
	}

	r.store(ctx, key, page, courseListTTL)
	return page.Courses, page.Total, nil
}

// GetWithLessons returns the course with its lessons in display order.
func (r *CourseRepository) GetWithLessons(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	key := detailKey(id)

	var course domain.Course
	if r.cached(ctx, key, &course) {
		return &course, nil
	}

	err := r.db.WithContext(ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" asc`)
		}).
		First(&course, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}

	r.store(ctx, key, course, courseDetailTTL)
	return &course, nil
}

// Create stores the course together with any lessons attached to it.
func (r *CourseRepository) Create(ctx context.Context, c *domain.Course) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return err
	}
	r.invalidateLists(ctx)
	return nil
}

func (r *CourseRepository) CreateLessons(ctx context.Context, courseID uuid.UUID, lessons []domain.Lesson) error {
	if len(lessons) == 0 {
		return nil
	}
	for i := range lessons {
		lessons[i].CourseID = courseID
	}
	if err := r.db.WithContext(ctx).Create(&lessons).Error; err != nil {
		return err
	}
	r.forget(ctx, detailKey(courseID))
	return nil
}

func (r *CourseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&domain.Course{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrCourseNotFound
	}
	r.forget(ctx, detailKey(id))
	r.invalidateLists(ctx)
	return nil
}

func detailKey(id uuid.UUID) string {
	return "course:detail:" + id.String()
}

func (r *CourseRepository) listKey(ctx context.Context, search, category string, limit, offset int) string {
	var version int64
	if r.rdb != nil {
		version, _ = r.rdb.Get(ctx, courseListVersionKey).Int64()
	}
	return fmt.Sprintf("courses:list:v%d:%s:%s:%d:%d", version, search, category, limit, offset)
}

func (r *CourseRepository) invalidateLists(ctx context.Context) {
	if r.rdb != nil {
		r.rdb.Incr(ctx, courseListVersionKey)
	}
}

// Cache errors are never fatal: a miss falls through to postgres.
func (r *CourseRepository) cached(ctx context.Context, key string, dst any) bool {
	if r.rdb == nil {
		return false
	}
	val, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, dst) == nil
}

func (r *CourseRepository) store(ctx context.Context, key string, v any, ttl time.Duration) {
	if r.rdb == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		r.rdb.Set(ctx, key, data, ttl)
	}
}

func (r *CourseRepository) forget(ctx context.Context, key string) {
	if r.rdb != nil {
		r.rdb.Del(ctx, key)
	}
}
