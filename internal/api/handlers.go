package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ilanpazar/messaging/internal/chat"
	"github.com/ilanpazar/messaging/internal/gateway"
	"github.com/ilanpazar/messaging/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type handlers struct {
	convs   *chat.ConversationStore
	msgs    *chat.MessageStore
	reads   *chat.ReadTracker
	unread  *chat.UnreadAggregator
	poll    *chat.PollService
	gw      *gateway.Gateway
	objects storage.ObjectStore
	log     *logrus.Logger
}

type findConversationRequest struct {
	ListingRef   string `json:"listing_ref" binding:"required"`
	ListingTitle string `json:"listing_title"`
	RecipientID  uint   `json:"recipient_id" binding:"required"`
}

// findConversation finds or creates the thread between the caller and the
// recipient about one listing.
func (h *handlers) findConversation(c *gin.Context) {
	var req findConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_ref and recipient_id are required"})
		return
	}
	conv, err := h.convs.FindOrCreate(c.Request.Context(), req.ListingRef, req.ListingTitle, callerID(c), req.RecipientID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *handlers) listConversations(c *gin.Context) {
	direction := chat.Direction(c.DefaultQuery("direction", string(chat.DirectionReceived)))
	convs, err := h.convs.ListForUser(c.Request.Context(), callerID(c), direction)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// pageMessages serves one reverse-chronological window. Fetching it marks the
// caller's unread messages in the conversation as read.
func (h *handlers) pageMessages(c *gin.Context) {
	conversationID, ok := pathID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	result, err := h.msgs.Page(c.Request.Context(), conversationID, callerID(c), page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": chat.NewMessageViews(result.Messages),
		"has_more": result.HasMore,
		"total":    result.Total,
	})
}

// pollEvents is the catch-up path: message deltas since a timestamp cursor,
// or since a message id when after_id is given.
func (h *handlers) pollEvents(c *gin.Context) {
	conversationID, ok := pathID(c)
	if !ok {
		return
	}

	if afterRaw := c.Query("after_id"); afterRaw != "" {
		afterID, err := strconv.ParseUint(afterRaw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after_id must be a message id"})
			return
		}
		events, err := h.poll.GetEventsAfterID(c.Request.Context(), conversationID, callerID(c), uint(afterID))
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
		return
	}

	since := time.Time{}
	if sinceRaw := c.Query("since"); sinceRaw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, sinceRaw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC 3339"})
			return
		}
		since = parsed
	}
	events, err := h.poll.GetEvents(c.Request.Context(), conversationID, callerID(c), since)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *handlers) markRead(c *gin.Context) {
	conversationID, ok := pathID(c)
	if !ok {
		return
	}
	updated, err := h.reads.MarkConversationRead(c.Request.Context(), conversationID, callerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if updated > 0 && h.gw != nil {
		h.gw.PublishRead(conversationID, callerID(c))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}

func (h *handlers) deleteConversation(c *gin.Context) {
	conversationID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.convs.Delete(c.Request.Context(), conversationID, callerID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// postMessage appends a message with optional file attachments. Multipart
// uploads go through the object store first; a JSON body may instead carry
// keys of already-uploaded objects.
func (h *handlers) postMessage(c *gin.Context) {
	var (
		conversationID uint
		content        string
		attachments    []string
		fileTypes      []string
	)

	if c.ContentType() == "application/json" {
		var req struct {
			ConversationID uint     `json:"conversation_id" binding:"required"`
			Content        string   `json:"content"`
			Attachments    []string `json:"attachments"`
			FileTypes      []string `json:"file_types"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
			return
		}
		conversationID = req.ConversationID
		content = req.Content
		attachments = req.Attachments
		fileTypes = req.FileTypes
	} else {
		rawID, err := strconv.ParseUint(c.PostForm("conversation_id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
			return
		}
		conversationID = uint(rawID)
		content = c.PostForm("content")

		form, err := c.MultipartForm()
		if err == nil && form != nil {
			for _, file := range form.File["files"] {
				if h.objects == nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "attachments are not enabled"})
					return
				}
				src, err := file.Open()
				if err != nil {
					h.writeError(c, err)
					return
				}
				key, coarseType, err := h.objects.Put(c.Request.Context(), file.Filename, src)
				src.Close()
				if err != nil {
					h.writeError(c, err)
					return
				}
				attachments = append(attachments, key)
				fileTypes = append(fileTypes, coarseType)
			}
		}
	}

	msg, err := h.msgs.Append(c.Request.Context(), conversationID, callerID(c), content, attachments, fileTypes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if h.gw != nil {
		h.gw.Publish(*msg)
	}
	c.JSON(http.StatusCreated, chat.NewMessageView(*msg))
}

func (h *handlers) unreadCounts(c *gin.Context) {
	direction := chat.Direction(c.DefaultQuery("direction", string(chat.DirectionReceived)))
	ctx := c.Request.Context()
	uid := callerID(c)

	total, err := h.unread.MailboxUnread(ctx, uid, direction)
	if err != nil {
		h.writeError(c, err)
		return
	}
	breakdown, err := h.unread.MailboxBreakdown(ctx, uid, direction)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "conversations": breakdown})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id must be numeric"})
		return 0, false
	}
	return uint(id), true
}

// writeError maps the chat error taxonomy onto HTTP statuses. Internal
// failures are logged and never leak details to the client.
func (h *handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.log.WithError(err).Error("api: internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
