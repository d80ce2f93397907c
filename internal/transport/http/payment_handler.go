package handlers

import (
	"context"
	"net/http"

	"courseplatform/internal/application/usecase"
	"courseplatform/internal/domain"
	"courseplatform/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentService interface {
	GetPlans(ctx context.Context) ([]domain.Plan, error)
	RedeemPromo(ctx context.Context, userID uuid.UUID, code string) (*usecase.RedeemResult, error)
	PurchaseItem(ctx context.Context, userID uuid.UUID, itemType, itemID string) (int, error)
}

type PaymentHandler struct {
	payments PaymentService
}

func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) GetPlans(c *gin.Context) {
	plans, err := h.payments.GetPlans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (h *PaymentHandler) Redeem(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.payments.RedeemPromo(c.Request.Context(), middleware.UserID(c), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) Purchase(c *gin.Context) {
	var req struct {
		ItemType string `json:"item_type" binding:"required"`
		ItemID   string `json:"item_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	balance, err := h.payments.PurchaseItem(c.Request.Context(), middleware.UserID(c), req.ItemType, req.ItemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "new_balance": balance})
}
