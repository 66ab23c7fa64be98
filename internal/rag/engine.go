// Package rag answers study questions over the tenant's uploaded
// documents: retrieve the closest chunks, ground the model's answer in
// them, and persist both sides of the exchange as conversation turns.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/cache/redis"
	"github.com/local-insights/backend/internal/llm"
	"github.com/local-insights/backend/internal/storage/sqlite"
	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/internal/vector/milvus"
	"github.com/local-insights/backend/pkg/logger"
	"github.com/local-insights/backend/pkg/utils"
)

const (
	topK            = 5
	historyTurns    = 10
	embeddingTTL    = 24 * time.Hour
	maxChunkContext = 500
	maxTitleLength  = 60
)

type Engine struct {
	db        *sqlite.Client
	vectorDB  *milvus.Client
	llmClient *llm.Client
	cache     *redis.Client
}

type AskRequest struct {
	ConversationID int64
	Question       string
	DocumentID     int64
}

type AskResponse struct {
	ConversationID int64          `json:"conversation_id"`
	Answer         string         `json:"answer"`
	Sources        []Source       `json:"sources"`
	MemoryActions  []MemoryAction `json:"memory_actions,omitempty"`
	LatencyMS      int            `json:"latency_ms"`
}

type Source struct {
	DocumentID int64   `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int64   `json:"chunk_index"`
	Score      float32 `json:"score"`
}

func NewEngine(db *sqlite.Client, vectorDB *milvus.Client, llmClient *llm.Client, cache *redis.Client) *Engine {
	return &Engine{
		db:        db,
		vectorDB:  vectorDB,
		llmClient: llmClient,
		cache:     cache,
	}
}

// Ask answers a question grounded in the tenant's documents. A zero
// ConversationID starts a new conversation titled after the question.
// Retrieval failures degrade to an unretrieved answer rather than
// failing the exchange.
func (e *Engine) Ask(ctx context.Context, tenantID tenant.ID, req AskRequest) (*AskResponse, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("question is empty")
	}

	startTime := time.Now()

	conversationID := req.ConversationID
	if conversationID == 0 {
		id, err := e.db.CreateConversation(ctx, tenantID, titleFrom(req.Question), "")
		if err != nil {
			return nil, err
		}
		conversationID = id
	}

	history, err := e.db.GetRecentMessages(ctx, tenantID, conversationID, historyTurns)
	if err != nil {
		return nil, err
	}

	messageID, err := e.db.CreateMessage(ctx, tenantID, conversationID, "user", req.Question)
	if err != nil {
		return nil, err
	}

	memoryActions := e.processMemory(ctx, tenantID, req.Question, messageID)

	results, err := e.retrieve(ctx, tenantID, req.Question, req.DocumentID)
	if err != nil {
		logger.Warn("Retrieval failed, answering without document context",
			zap.Int64("user_id", int64(tenantID)), zap.Error(err))
		results = nil
	}

	answer, err := e.llmClient.GenerateAnswer(ctx, req.Question, formatContext(results), e.memoryPrompt(ctx, tenantID), history)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	if _, err := e.db.CreateMessage(ctx, tenantID, conversationID, "assistant", answer); err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			ChunkIndex: r.ChunkIndex,
			Score:      r.Score,
		})
	}

	latency := int(time.Since(startTime).Milliseconds())

	logger.Info("Question answered",
		zap.Int64("user_id", int64(tenantID)),
		zap.Int64("conversation_id", conversationID),
		zap.Int("sources", len(sources)),
		zap.Int("latency_ms", latency),
	)

	return &AskResponse{
		ConversationID: conversationID,
		Answer:         answer,
		Sources:        sources,
		MemoryActions:  memoryActions,
		LatencyMS:      latency,
	}, nil
}

func (e *Engine) retrieve(ctx context.Context, tenantID tenant.ID, question string, documentID int64) ([]milvus.SearchResult, error) {
	if e.vectorDB == nil {
		return nil, nil
	}

	embedding, err := e.embedQuestion(ctx, question)
	if err != nil {
		return nil, err
	}

	return e.vectorDB.Search(ctx, tenantID, embedding, topK, documentID)
}

// embedQuestion embeds the question text, consulting the shared
// embedding cache first. Embeddings carry no tenant data; the same text
// always embeds to the same vector.
func (e *Engine) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	textHash := utils.Checksum(question)

	if e.cache != nil {
		embedding, ok, err := e.cache.GetEmbedding(ctx, textHash)
		if err != nil {
			logger.Warn("Embedding cache read failed", zap.Error(err))
		} else if ok {
			return embedding, nil
		}
	}

	embedding, err := e.llmClient.GenerateEmbedding(ctx, question)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetEmbedding(ctx, textHash, embedding, embeddingTTL); err != nil {
			logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}

	return embedding, nil
}

func formatContext(results []milvus.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, result := range results {
		text := result.Text
		if len(text) > maxChunkContext {
			text = text[:maxChunkContext]
		}
		builder.WriteString(fmt.Sprintf("[%d] %s (chunk %d)\n%s\n\n",
			i+1, result.Filename, result.ChunkIndex, text))
	}

	return builder.String()
}

func titleFrom(question string) string {
	title := strings.TrimSpace(question)
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength] + "..."
	}
	return title
}
