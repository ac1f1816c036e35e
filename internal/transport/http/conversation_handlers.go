package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatcore/internal/core"
	"github.com/vovakirdan/chatcore/internal/proto"
	"github.com/vovakirdan/chatcore/internal/store"
)

// Notifier delivers an event to whichever connection a user currently holds.
type Notifier interface {
	NotifyUser(userID string, ev *core.Event) bool
}

// ConversationHandlers provides HTTP handlers for conversation endpoints.
type ConversationHandlers struct {
	repo         store.Repository
	notifier     Notifier
	historyLimit int
	timeout      time.Duration
	log          *zerolog.Logger
}

// NewConversationHandlers creates a new conversation handlers instance.
func NewConversationHandlers(repo store.Repository, notifier Notifier, historyLimit int, timeout time.Duration, logger *zerolog.Logger) *ConversationHandlers {
	return &ConversationHandlers{
		repo:         repo,
		notifier:     notifier,
		historyLimit: historyLimit,
		timeout:      timeout,
		log:          logger,
	}
}

// CreateConversationRequest represents the create conversation request body.
type CreateConversationRequest struct {
	UserID string `json:"userId" binding:"required,max=128"`
}

// MessagesResponse is a page of conversation history, oldest first.
type MessagesResponse struct {
	Messages []proto.EventMessage `json:"messages"`
}

// CreateConversation starts (or returns) the direct conversation between the caller and another user.
// POST /api/conversations
func (h *ConversationHandlers) CreateConversation(c *gin.Context) {
	caller := currentUser(c)

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create conversation request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.UserID == caller {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot start a conversation with yourself"})
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	conv, created, err := h.repo.CreateConversation(ctx, []string{caller, req.UserID})
	if err != nil {
		h.writeStoreError(c, err, "failed to create conversation")
		return
	}

	if !created {
		c.JSON(http.StatusOK, conversationView(conv))
		return
	}

	h.log.Info().Str("conversation_id", conv.ID).Str("user_id", caller).Msg("conversation created")
	h.notifier.NotifyUser(req.UserID, &core.Event{Kind: core.EventConversationCreated, Conversation: conv})
	c.JSON(http.StatusCreated, conversationView(conv))
}

// ListConversations lists the caller's conversations, most recently active first.
// GET /api/conversations
func (h *ConversationHandlers) ListConversations(c *gin.Context) {
	caller := currentUser(c)

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	convs, err := h.repo.ListConversations(ctx, caller)
	if err != nil {
		h.writeStoreError(c, err, "failed to list conversations")
		return
	}

	response := make([]proto.Conversation, 0, len(convs))
	for _, conv := range convs {
		response = append(response, conversationView(conv))
	}
	c.JSON(http.StatusOK, response)
}

// ListMessages returns conversation history to a participant.
// GET /api/conversations/:id/messages?limit=&before=
func (h *ConversationHandlers) ListMessages(c *gin.Context) {
	caller := currentUser(c)
	conversationID := c.Param("id")

	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, h.historyLimit)
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	conv, err := h.repo.GetConversation(ctx, conversationID)
	if err != nil {
		h.writeStoreError(c, err, "failed to load conversation")
		return
	}
	if !conv.HasParticipant(caller) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a participant"})
		return
	}

	msgs, err := h.repo.ListMessages(ctx, conversationID, limit, c.Query("before"))
	if err != nil {
		h.writeStoreError(c, err, "failed to list messages")
		return
	}

	response := MessagesResponse{Messages: make([]proto.EventMessage, 0, len(msgs))}
	for _, m := range msgs {
		response.Messages = append(response.Messages, storedMessageView(m))
	}
	c.JSON(http.StatusOK, response)
}

func (h *ConversationHandlers) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *ConversationHandlers) writeStoreError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, store.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
