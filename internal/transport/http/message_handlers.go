package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/duochat/internal/core"
	"github.com/vovakirdan/duochat/internal/proto"
	"github.com/vovakirdan/duochat/internal/store"
)

// MessageHandlers provides HTTP handlers for the conversation endpoints.
type MessageHandlers struct {
	conv     Conversation
	chat     core.ChatService
	maxBytes int
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(conv Conversation, chat core.ChatService, maxBytes int, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		conv:     conv,
		chat:     chat,
		maxBytes: maxBytes,
		log:      logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// UpdateMessageRequest is a full message record; the id comes from the path.
type UpdateMessageRequest struct {
	Content string `json:"content"`
	Sender  string `json:"sender" binding:"required"`
	IsSent  bool   `json:"is_sent"`
	IsRead  bool   `json:"is_read"`
	TS      int64  `json:"ts" binding:"required"`
}

// MarkReadRequest names the persona doing the reading. Empty means active.
type MarkReadRequest struct {
	Persona string `json:"persona"`
}

// PersonaResponse reports the active persona.
type PersonaResponse struct {
	Persona string `json:"persona"`
}

// AcceptedResponse is returned for writes queued on the conversation loop.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// ListMessages returns the timeline.
// GET /api/messages?as=User|Other
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	viewer, protoErr := personaOrActive(c.Query("as"), h.conv.Active())
	if protoErr != nil {
		writeProtoError(c, http.StatusBadRequest, protoErr)
		return
	}

	c.JSON(http.StatusOK, snapshotToProto(viewer, h.conv.Messages().Latest()))
}

// SendMessage queues a message from the active persona.
// POST /api/messages
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}
	if protoErr := checkContent(req.Content, h.maxBytes); protoErr != nil {
		writeProtoError(c, http.StatusBadRequest, protoErr)
		return
	}

	if err := h.conv.SendMessage(req.Content); err != nil {
		h.writeQueueError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{Status: "queued"})
}

// UpdateMessage writes a whole message record back.
// PUT /api/messages/:id
func (h *MessageHandlers) UpdateMessage(c *gin.Context) {
	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid update message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	msg, err := messageFromProto(proto.MessageData{
		ID:      c.Param("id"),
		Content: req.Content,
		Sender:  req.Sender,
		IsSent:  req.IsSent,
		IsRead:  req.IsRead,
		TS:      req.TS,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: core.ErrCodeInvalidPersona})
		return
	}

	if err := h.chat.UpdateMessage(c.Request.Context(), msg); err != nil {
		h.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to update message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeStorage})
		return
	}

	h.log.Debug().Str("message_id", msg.ID).Msg("message updated")
	c.JSON(http.StatusOK, messageToProto(msg))
}

// ListUnread returns the unread messages of a sender.
// GET /api/messages/unread?sender=User|Other
func (h *MessageHandlers) ListUnread(c *gin.Context) {
	sender, err := store.ParsePersona(c.Query("sender"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: core.ErrCodeInvalidPersona})
		return
	}

	unread, err := h.chat.GetUnreadMessages(c.Request.Context(), sender)
	if err != nil {
		h.log.Error().Err(err).Stringer("sender", sender).Msg("failed to list unread messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeStorage})
		return
	}

	c.JSON(http.StatusOK, lo.Map(unread, func(msg store.Message, _ int) proto.MessageData {
		return messageToProto(msg)
	}))
}

// MarkRead queues marking the counterpart's messages as read.
// POST /api/messages/read
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	// An empty body means the active persona is reading.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
			return
		}
	}

	reader, protoErr := personaOrActive(req.Persona, h.conv.Active())
	if protoErr != nil {
		writeProtoError(c, http.StatusBadRequest, protoErr)
		return
	}

	if err := h.conv.MarkMessagesAsRead(reader); err != nil {
		h.writeQueueError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{Status: "queued"})
}

// GetPersona returns the active persona.
// GET /api/persona
func (h *MessageHandlers) GetPersona(c *gin.Context) {
	c.JSON(http.StatusOK, PersonaResponse{Persona: h.conv.Active().String()})
}

// TogglePersona switches the active persona.
// POST /api/persona/toggle
func (h *MessageHandlers) TogglePersona(c *gin.Context) {
	c.JSON(http.StatusOK, PersonaResponse{Persona: h.conv.TogglePersona().String()})
}

func (h *MessageHandlers) writeQueueError(c *gin.Context, err error) {
	if errors.Is(err, core.ErrStopped) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "conversation stopped"})
		return
	}
	h.log.Error().Err(err).Msg("failed to queue command")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func writeProtoError(c *gin.Context, status int, protoErr *proto.Error) {
	c.JSON(status, ErrorResponse{Error: protoErr.Msg, Code: protoErr.Code})
}
