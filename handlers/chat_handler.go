package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hirewise/llm-proxy/providers"
	"github.com/hirewise/llm-proxy/router"
	"github.com/hirewise/llm-proxy/utils"
	"go.uber.org/zap"
)

// ChatRequest is the wire request for the chat endpoint
type ChatRequest struct {
	SessionID    string        `json:"sessionId" validate:"required"`
	SubmissionID string        `json:"submissionId" validate:"required"`
	Provider     string        `json:"provider,omitempty"`
	Model        string        `json:"model,omitempty"`
	Messages     []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Temperature  *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens    int           `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
}

// ChatMessage is a single message on the wire
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatHandler handles chat proxy HTTP requests
type ChatHandler struct {
	router *router.Router
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(rt *router.Router, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		router: rt,
		logger: logger,
	}
}

// HandleChat handles POST /llm-proxy/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var chatReq ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&chatReq); err != nil {
		h.logger.Warn("request validation failed", zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	messages := make([]providers.Message, len(chatReq.Messages))
	for i, msg := range chatReq.Messages {
		messages[i] = providers.Message{Role: msg.Role, Content: msg.Content}
	}

	session := router.SessionContext{
		SessionID:    chatReq.SessionID,
		SubmissionID: chatReq.SubmissionID,
	}
	routeReq := &router.Request{
		Provider:    chatReq.Provider,
		Model:       chatReq.Model,
		Messages:    messages,
		Temperature: chatReq.Temperature,
		MaxTokens:   chatReq.MaxTokens,
	}

	h.logger.Debug("routing chat request",
		zap.String("session_id", chatReq.SessionID),
		zap.String("submission_id", chatReq.SubmissionID),
		zap.String("provider", chatReq.Provider),
		zap.String("model", chatReq.Model),
		zap.Int("messages", len(messages)))

	result, err := h.router.Route(r.Context(), session, routeReq)
	if err != nil {
		HandleRouteError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
