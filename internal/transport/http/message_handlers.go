package http

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/venturesroom/venturechat/internal/core"
	"github.com/venturesroom/venturechat/internal/metrics"
	"github.com/venturesroom/venturechat/internal/store"
)

// MessageHandlers provides HTTP handlers for the chat endpoints.
type MessageHandlers struct {
	hub       *core.Hub
	store     store.Store
	log       *zerolog.Logger
	uploadDir string
	maxUpload int64
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(hub *core.Hub, st store.Store, logger *zerolog.Logger, uploadDir string, maxUpload int64) *MessageHandlers {
	return &MessageHandlers{
		hub:       hub,
		store:     st,
		log:       logger,
		uploadDir: uploadDir,
		maxUpload: maxUpload,
	}
}

// MessageResponse is a message in API responses. Timestamps are RFC3339 so
// browser and CLI clients can parse them without a custom format.
type MessageResponse struct {
	ID           int64  `json:"id"`
	SenderName   string `json:"senderName"`
	ReceiverName string `json:"receiverName"`
	Content      string `json:"content"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Timestamp    string `json:"timestamp"`
	Read         bool   `json:"read"`
}

// PartnerResponse is one eligible conversation partner.
type PartnerResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	LogoPath    string `json:"logoPath,omitempty"`
}

// SendRequest represents the send request body.
type SendRequest struct {
	ReceiverName string `json:"receiverName" binding:"required"`
	Content      string `json:"content"`
	ImageURL     string `json:"imageUrl"`
}

// SendResponse wraps the persisted message.
type SendResponse struct {
	SentMessage MessageResponse `json:"sentMessage"`
}

// MarkReadRequest represents the mark-as-read request body.
type MarkReadRequest struct {
	SenderName string `json:"senderName" binding:"required"`
}

// UnreadEntryResponse is one row of the unread summary.
type UnreadEntryResponse struct {
	SenderName  string `json:"senderName"`
	UnreadCount int    `json:"unreadCount"`
}

// UploadResponse carries the stored image reference.
type UploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

func messageResponse(msg *core.Message) MessageResponse {
	return MessageResponse{
		ID:           msg.ID,
		SenderName:   msg.SenderName,
		ReceiverName: msg.ReceiverName,
		Content:      msg.Content,
		ImageURL:     msg.ImageURL,
		Timestamp:    msg.CreatedAt.Format(time.RFC3339Nano),
		Read:         msg.Read,
	}
}

// ConversablePartners lists users the caller may chat with.
// GET /api/messages/conversable-partners
func (h *MessageHandlers) ConversablePartners(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	partners, err := h.store.ListPartners(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list partners")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]PartnerResponse, 0, len(partners))
	for _, p := range partners {
		response = append(response, PartnerResponse{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			LogoPath:    p.LogoPath,
		})
	}
	c.JSON(http.StatusOK, response)
}

// ConversationWith returns the full message history with one partner,
// ordered by timestamp ascending.
// GET /api/messages/with/:partner
func (h *MessageHandlers) ConversationWith(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	partnerName := c.Param("partner")
	partner, err := h.store.GetUserByDisplayName(c.Request.Context(), partnerName)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown partner"})
		return
	}

	messages, err := h.store.MessagesBetween(c.Request.Context(), uid, partner.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Str("partner", partnerName).Msg("failed to load conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, MessageResponse{
			ID:           msg.ID,
			SenderName:   msg.SenderName,
			ReceiverName: msg.ReceiverName,
			Content:      msg.Content,
			ImageURL:     msg.ImageURL,
			Timestamp:    msg.CreatedAt.Format(time.RFC3339Nano),
			Read:         msg.Read,
		})
	}
	c.JSON(http.StatusOK, response)
}

// Send persists a direct message and fans it out to connected sessions.
// A thin wrapper over the hub's persist-and-publish path; the WebSocket
// relay funnels into the same operation.
// POST /api/messages/send
func (h *MessageHandlers) Send(c *gin.Context) {
	uid, displayName, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.hub.Deliver(c.Request.Context(), core.DeliverRequest{
		SenderID:     uid,
		SenderName:   displayName,
		ReceiverName: req.ReceiverName,
		Content:      strings.TrimSpace(req.Content),
		ImageURL:     req.ImageURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message needs content or an image"})
		case errors.Is(err, core.ErrReceiverNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown receiver"})
		default:
			h.log.Error().Err(err).Str("sender", displayName).Msg("failed to send message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, SendResponse{SentMessage: messageResponse(msg)})
}

// MarkAsRead marks all messages from one sender to the caller as read and
// notifies the caller's other sessions so their badges re-sync.
// POST /api/messages/mark-as-read
func (h *MessageHandlers) MarkAsRead(c *gin.Context) {
	uid, displayName, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid mark-as-read request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	sender, err := h.store.GetUserByDisplayName(c.Request.Context(), req.SenderName)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown sender"})
		return
	}

	if _, err := h.store.MarkConversationRead(c.Request.Context(), uid, sender.ID); err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Str("sender", req.SenderName).Msg("failed to mark conversation read")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.hub.NotifyRead(displayName)
	c.Status(http.StatusNoContent)
}

// UnreadSummary returns per-sender unread counts for the caller. Senders
// with zero unread messages never appear.
// GET /api/messages/my-unread-summary
func (h *MessageHandlers) UnreadSummary(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	entries, err := h.store.UnreadSummary(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to load unread summary")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UnreadEntryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, UnreadEntryResponse{
			SenderName:  e.SenderName,
			UnreadCount: e.UnreadCount,
		})
	}
	c.JSON(http.StatusOK, response)
}

var allowedImageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// UploadImage stores a chat image attachment and returns its URL.
// POST /api/messages/upload-image  (multipart, field "File")
func (h *MessageHandlers) UploadImage(c *gin.Context) {
	if _, _, ok := currentUser(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	file, err := c.FormFile("File")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing file"})
		return
	}

	if file.Size > h.maxUpload {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: fmt.Sprintf("file exceeds %d byte limit", h.maxUpload)})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := allowedImageExts[ext]; !ok {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{Error: "only JPEG, PNG and GIF images are allowed"})
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.log.Error().Err(err).Str("dir", h.uploadDir).Msg("failed to create upload dir")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(h.uploadDir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		h.log.Error().Err(err).Str("dst", dst).Msg("failed to store upload")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	c.JSON(http.StatusOK, UploadResponse{ImageURL: "/uploads/" + name})
}
