package handlers

import (
	"errors"
	"net/http"

	"courseplatform/internal/domain"

	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrDeviceCapExceeded, http.StatusConflict},
	{domain.ErrStorageConflict, http.StatusServiceUnavailable},

	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrProfileNotFound, http.StatusNotFound},
	{domain.ErrDeviceNotFound, http.StatusNotFound},
	{domain.ErrCourseNotFound, http.StatusNotFound},
	{domain.ErrLessonNotFound, http.StatusNotFound},
	{domain.ErrPromoNotFound, http.StatusNotFound},

	{domain.ErrInvalidFingerprint, http.StatusBadRequest},
	{domain.ErrInvalidCap, http.StatusBadRequest},
	{domain.ErrInvalidAvatar, http.StatusBadRequest},
	{domain.ErrInvalidUsername, http.StatusBadRequest},
	{domain.ErrUnknownItemType, http.StatusBadRequest},
	{domain.ErrInvalidItemID, http.StatusBadRequest},
	{domain.ErrPromoExpired, http.StatusBadRequest},
	{domain.ErrPromoExhausted, http.StatusBadRequest},

	{domain.ErrInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrInvalidToken, http.StatusUnauthorized},
	{domain.ErrTokenRevoked, http.StatusUnauthorized},

	{domain.ErrUserAlreadyExists, http.StatusConflict},
	{domain.ErrEmailTaken, http.StatusConflict},
	{domain.ErrPromoAlreadyUsed, http.StatusConflict},

	{domain.ErrSubscriptionExpired, http.StatusForbidden},
	{domain.ErrCourseLimitReached, http.StatusForbidden},
	{domain.ErrInsufficientBalance, http.StatusPaymentRequired},
}

// respondError writes the status for a domain error. Unknown errors are
// reported as 500 without their text; the request logger picks them up
// from c.Errors.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.AbortWithStatusJSON(e.status, gin.H{"error": e.err.Error()})
			return
		}
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
