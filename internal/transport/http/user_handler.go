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

type ProfileService interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	GetProfileView(ctx context.Context, id uuid.UUID) (*usecase.ProfileView, error)
	UpdateUsername(ctx context.Context, id uuid.UUID, username string) error
	SetAvatar(ctx context.Context, id uuid.UUID, avatarID int) error
	SetDevicePolicy(ctx context.Context, id uuid.UUID, deviceLimit int, evictOldest bool) error
}

type DeviceService interface {
	ListDevices(ctx context.Context, userID uuid.UUID) ([]domain.Device, error)
	RemoveDevice(ctx context.Context, userID uuid.UUID, deviceID uint) error
	AdminDeleteDevice(ctx context.Context, deviceID uint) (*domain.Device, error)
}

type UserHandler struct {
	profiles ProfileService
	devices  DeviceService
}

func NewUserHandler(profiles ProfileService, devices DeviceService) *UserHandler {
	return &UserHandler{profiles: profiles, devices: devices}
}

// GET /api/v1/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	view, err := h.profiles.GetProfileView(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PUT /api/v1/user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.profiles.UpdateUsername(c.Request.Context(), middleware.UserID(c), req.Username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// POST /api/v1/user/avatar
func (h *UserHandler) SetAvatar(c *gin.Context) {
	var req struct {
		AvatarID int `json:"avatar_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if err := h.profiles.SetAvatar(c.Request.Context(), middleware.UserID(c), req.AvatarID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar_id": req.AvatarID})
}

// GET /api/v1/user/devices
func (h *UserHandler) GetDevices(c *gin.Context) {
	devices, err := h.devices.ListDevices(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// DELETE /api/v1/user/devices/:id
func (h *UserHandler) RemoveDevice(c *gin.Context) {
	deviceID, ok := deviceParam(c)
	if !ok {
		return
	}

	if err := h.devices.RemoveDevice(c.Request.Context(), middleware.UserID(c), deviceID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func deviceParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return 0, false
	}
	return uint(id), true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
