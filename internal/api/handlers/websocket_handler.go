package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/auth"
	"github.com/local-insights/backend/internal/rag"
	"github.com/local-insights/backend/pkg/logger"
)

// WebSocketHandler streams chat answers word by word over a socket.
// The client authenticates with a token query parameter at connect.
type WebSocketHandler struct {
	engine  *rag.Engine
	authSvc *auth.Service
}

func NewWebSocketHandler(engine *rag.Engine, authSvc *auth.Service) *WebSocketHandler {
	return &WebSocketHandler{engine: engine, authSvc: authSvc}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	defer c.Close()

	tenantID, err := h.authSvc.ParseToken(c.Query("token"))
	if err != nil {
		h.sendError(c, "Not authenticated")
		return
	}

	logger.Info("WebSocket connection established", zap.Int64("user_id", int64(tenantID)))
	defer logger.Info("WebSocket connection closed", zap.Int64("user_id", int64(tenantID)))

	for {
		var msg struct {
			Type           string `json:"type"`
			Question       string `json:"question"`
			ConversationID int64  `json:"conversation_id"`
			DocumentID     int64  `json:"document_id"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			break
		}

		if msg.Type != "ask" || msg.Question == "" {
			continue
		}

		resp, err := h.engine.Ask(context.Background(), tenantID, rag.AskRequest{
			ConversationID: msg.ConversationID,
			Question:       msg.Question,
			DocumentID:     msg.DocumentID,
		})
		if err != nil {
			logger.Error("Failed to answer WebSocket question", zap.Error(err))
			h.sendError(c, "Failed to answer question")
			continue
		}

		if err := h.streamAnswer(c, resp); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, resp *rag.AskResponse) error {
	for _, word := range splitIntoWords(resp.Answer) {
		chunk := word
		if word != "\n" {
			chunk += " "
		}
		if err := c.WriteJSON(map[string]interface{}{
			"type":    "chunk",
			"content": chunk,
		}); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":            "complete",
		"conversation_id": resp.ConversationID,
		"sources":         resp.Sources,
		"latency_ms":      resp.LatencyMS,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
