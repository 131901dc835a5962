package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"gearyard/internal/app/dto"
	promosvc "gearyard/internal/app/services/promo"
)

type PromoHTTP interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Deactivate(c *gin.Context)
}

type PromoHandler struct {
	Service *promosvc.Service
	Logger  *slog.Logger
}

type createPromoRequest struct {
	Code           string     `json:"code"`
	PercentOff     int64      `json:"percent_off"`
	AmountOffCents int64      `json:"amount_off_cents"`
	MaxRedemptions int        `json:"max_redemptions"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

func (h PromoHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "seller")
	if !ok {
		return
	}
	var req createPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := promosvc.CreateParams{
		Code:           req.Code,
		SellerID:       user.ID,
		PercentOff:     req.PercentOff,
		AmountOffCents: req.AmountOffCents,
		MaxRedemptions: req.MaxRedemptions,
	}
	if req.ExpiresAt != nil {
		params.ExpiresAt = *req.ExpiresAt
	}
	code, err := h.Service.Create(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapPromoCode(code))
}

func (h PromoHandler) List(c *gin.Context) {
	user, ok := requireRole(c, "seller")
	if !ok {
		return
	}
	items, err := h.Service.ListMine(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPromoCodeList(items))
}

func (h PromoHandler) Deactivate(c *gin.Context) {
	user, ok := requireRole(c, "seller")
	if !ok {
		return
	}
	code, err := h.Service.Deactivate(c.Request.Context(), c.Param("code"), user.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapPromoCode(code))
}

var _ PromoHTTP = PromoHandler{}
