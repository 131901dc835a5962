package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"gearyard/internal/app/dto"
	chatsvc "gearyard/internal/app/services/chat"
	domainchat "gearyard/internal/domain/chat"
	domainlistings "gearyard/internal/domain/listings"
)

type ChatHTTP interface {
	List(c *gin.Context)
	Open(c *gin.Context)
	Messages(c *gin.Context)
	Send(c *gin.Context)
	MarkRead(c *gin.Context)
}

type ChatHandler struct {
	Service *chatsvc.Service
	Logger  *slog.Logger
}

func (h ChatHandler) List(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	items, err := h.Service.List(c.Request.Context(), user.ID, parseLimit(c.Query("limit")))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewConversationList(items, user.ID))
}

type openConversationRequest struct {
	ListingID string `json:"listing_id"`
}

func (h ChatHandler) Open(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ListingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_id is required"})
		return
	}
	conv, err := h.Service.Open(c.Request.Context(), domainlistings.ListingID(req.ListingID), user.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapConversation(conv, user.ID))
}

func (h ChatHandler) Messages(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be RFC3339"})
			return
		}
		before = parsed
	}
	items, err := h.Service.Messages(c.Request.Context(), domainchat.ConversationID(c.Param("id")), user.ID, parseLimit(c.Query("limit")), before)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewChatMessageList(items))
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h ChatHandler) Send(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.Service.Send(c.Request.Context(), chatsvc.SendParams{
		ConversationID: domainchat.ConversationID(c.Param("id")),
		SenderID:       user.ID,
		Text:           req.Text,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapChatMessage(msg))
}

func (h ChatHandler) MarkRead(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	conv, err := h.Service.MarkRead(c.Request.Context(), domainchat.ConversationID(c.Param("id")), user.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapConversation(conv, user.ID))
}

var _ ChatHTTP = ChatHandler{}
