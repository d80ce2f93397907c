package handlers

import (
	"context"
	"net/http"
	"strconv"

	"courseplatform/internal/application/usecase"
	"courseplatform/internal/domain"
	"courseplatform/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CourseService interface {
	List(ctx context.Context, search, category string, limit, offset int) ([]domain.Course, int64, error)
	Get(ctx context.Context, courseID, userID uuid.UUID) (*usecase.CourseDetail, error)
	Create(ctx context.Context, in usecase.CreateCourseInput) (*domain.Course, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Start(ctx context.Context, userID, courseID uuid.UUID) error
	CompleteLesson(ctx context.Context, userID, courseID, lessonID uuid.UUID) (*usecase.LessonProgress, error)
}

type CourseHandler struct {
	courses CourseService
}

func NewCourseHandler(courses CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// GET /api/v1/courses?search=&category=&limit=&offset=
func (h *CourseHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	courses, total, err := h.courses.List(c.Request.Context(), c.Query("search"), c.Query("category"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses, "total": total})
}

// GET /api/v1/courses/:id
func (h *CourseHandler) GetOne(c *gin.Context) {
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.courses.Get(c.Request.Context(), courseID, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// POST /api/v1/courses/:id/start
func (h *CourseHandler) Start(c *gin.Context) {
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.courses.Start(c.Request.Context(), middleware.UserID(c), courseID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// POST /api/v1/courses/:id/lessons/:lessonId/complete
func (h *CourseHandler) CompleteLesson(c *gin.Context) {
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	lessonID, ok := uuidParam(c, "lessonId")
	if !ok {
		return
	}

	progress, err := h.courses.CompleteLesson(c.Request.Context(), middleware.UserID(c), courseID, lessonID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// POST /api/v1/admin/courses
func (h *CourseHandler) Create(c *gin.Context) {
	var req usecase.CreateCourseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

// DELETE /api/v1/admin/courses/:id
func (h *CourseHandler) Delete(c *gin.Context) {
	courseID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.courses.Delete(c.Request.Context(), courseID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
