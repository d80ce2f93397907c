package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the back-office device endpoints. Course
// management lives on CourseHandler.
type AdminHandler struct {
	profiles ProfileService
	devices  DeviceService
}

func NewAdminHandler(profiles ProfileService, devices DeviceService) *AdminHandler {
	return &AdminHandler{profiles: profiles, devices: devices}
}

// GET /api/v1/admin/users/:id/devices
func (h *AdminHandler) UserDevices(c *gin.Context) {
	userID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	devices, err := h.devices.ListDevices(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// DELETE /api/v1/admin/devices/:id removes one device without touching
// the user's other devices.
func (h *AdminHandler) DeleteDevice(c *gin.Context) {
	deviceID, ok := deviceParam(c)
	if !ok {
		return
	}

	device, err := h.devices.AdminDeleteDevice(c.Request.Context(), deviceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": device})
}

// PUT /api/v1/admin/users/:id/device-policy
func (h *AdminHandler) SetDevicePolicy(c *gin.Context) {
	userID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		DeviceLimit int  `json:"device_limit" binding:"required"`
		EvictOldest bool `json:"evict_oldest"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.profiles.SetDevicePolicy(c.Request.Context(), userID, req.DeviceLimit, req.EvictOldest); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"device_limit": req.DeviceLimit, "evict_oldest": req.EvictOldest})
}
