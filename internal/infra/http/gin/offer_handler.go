package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gearyard/internal/app/commands"
	"gearyard/internal/app/dto"
	offerapp "gearyard/internal/app/handlers/offers"
	"gearyard/internal/app/queries"
)

type OfferHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Accept(c *gin.Context)
	Decline(c *gin.Context)
	Counter(c *gin.Context)
	Withdraw(c *gin.Context)
	RespondCounter(c *gin.Context)
	ListReceived(c *gin.Context)
	ListSent(c *gin.Context)
}

type OfferHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createOfferRequest struct {
	ListingID   string `json:"listing_id"`
	AmountCents int64  `json:"amount_cents"`
	Message     string `json:"message"`
}

func (h OfferHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := offerapp.CreateOfferCommand{
		CommandID:       generateCommandID(),
		ListingID:       req.ListingID,
		BuyerID:         user.ID,
		AmountCents:     req.AmountCents,
		Message:         req.Message,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[offerapp.CreateOfferCommand, *offerapp.CreateOfferResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h OfferHandler) Get(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := offerapp.GetOfferQuery{OfferID: c.Param("id"), ActorID: user.ID}
	result, err := queries.Ask[offerapp.GetOfferQuery, *dto.Offer](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h OfferHandler) Accept(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	cmd := offerapp.AcceptOfferCommand{OfferID: c.Param("id"), ActorID: user.ID}
	result, err := commands.Dispatch[offerapp.AcceptOfferCommand, *offerapp.AcceptOfferResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type declineOfferRequest struct {
	Reason string `json:"reason"`
}

func (h OfferHandler) Decline(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req declineOfferRequest
	_ = c.ShouldBindJSON(&req)
	cmd := offerapp.DeclineOfferCommand{OfferID: c.Param("id"), ActorID: user.ID, Reason: req.Reason}
	result, err := commands.Dispatch[offerapp.DeclineOfferCommand, *offerapp.TransitionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type counterOfferRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Message     string `json:"message"`
}

func (h OfferHandler) Counter(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req counterOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := offerapp.CounterOfferCommand{
		OfferID:     c.Param("id"),
		ActorID:     user.ID,
		AmountCents: req.AmountCents,
		Message:     req.Message,
	}
	result, err := commands.Dispatch[offerapp.CounterOfferCommand, *offerapp.TransitionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h OfferHandler) Withdraw(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	cmd := offerapp.WithdrawOfferCommand{OfferID: c.Param("id"), ActorID: user.ID}
	result, err := commands.Dispatch[offerapp.WithdrawOfferCommand, *offerapp.TransitionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type respondCounterRequest struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}

func (h OfferHandler) RespondCounter(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req respondCounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := offerapp.RespondCounterCommand{
		OfferID: c.Param("id"),
		ActorID: user.ID,
		Accept:  req.Accept,
		Reason:  req.Reason,
	}
	result, err := commands.Dispatch[offerapp.RespondCounterCommand, *offerapp.TransitionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h OfferHandler) ListReceived(c *gin.Context) {
	user, ok := requireRole(c, "seller")
	if !ok {
		return
	}
	q := offerapp.ListReceivedQuery{
		SellerID:  user.ID,
		Status:    c.Query("status"),
		ListingID: c.Query("listing_id"),
		Limit:     parseLimit(c.Query("limit")),
	}
	result, err := queries.Ask[offerapp.ListReceivedQuery, *dto.OfferList](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h OfferHandler) ListSent(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := offerapp.ListSentQuery{
		BuyerID:   user.ID,
		Status:    c.Query("status"),
		ListingID: c.Query("listing_id"),
		Limit:     parseLimit(c.Query("limit")),
	}
	result, err := queries.Ask[offerapp.ListSentQuery, *dto.OfferList](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SweepTrigger exposes the expiry pass as an operational endpoint so a stuck
// or disabled worker can be run by hand.
type SweepTrigger struct {
	Handler *offerapp.SweepHandler
	Logger  *slog.Logger
}

func (h SweepTrigger) Trigger(c *gin.Context) {
	result, err := h.Handler.SweepExpired(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func generateCommandID() string {
	return uuid.NewString()
}

var _ OfferHTTP = OfferHandler{}
