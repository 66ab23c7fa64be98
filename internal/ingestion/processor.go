// Package ingestion turns uploaded document text into stored documents,
// embedded chunks, and generated study material. Binary formats are
// extracted to plain text upstream; this package never parses them.
package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/llm"
	"github.com/local-insights/backend/internal/storage/sqlite"
	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/internal/vector/milvus"
	"github.com/local-insights/backend/pkg/logger"
	"github.com/local-insights/backend/pkg/utils"
)

type Processor struct {
	db           *sqlite.Client
	vectorDB     *milvus.Client
	llmClient    *llm.Client
	chunkSize    int
	chunkOverlap int
}

// UploadResult reports what happened to one uploaded document.
type UploadResult struct {
	DocumentID int64 `json:"document_id"`
	Chunks     int   `json:"chunks"`
	Duplicate  bool  `json:"duplicate"`
}

// MaterialOptions controls which study materials to generate.
type MaterialOptions struct {
	Summary        bool
	FlashcardCount int
	QuizCount      int
}

// MaterialResult reports per-item outcomes of a generation run. A
// failed item carries its error message; the others still succeed.
type MaterialResult struct {
	Summary        string   `json:"summary,omitempty"`
	Flashcards     int      `json:"flashcards"`
	QuizQuestions  int      `json:"quiz_questions"`
	FailedItems    []string `json:"failed_items,omitempty"`
}

func NewProcessor(db *sqlite.Client, vectorDB *milvus.Client, llmClient *llm.Client, chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 100
	}
	return &Processor{
		db:           db,
		vectorDB:     vectorDB,
		llmClient:    llmClient,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// UploadDocument stores extracted document text for a tenant and indexes
// its chunks for retrieval. An identical upload (same checksum) returns
// the existing document instead of storing it twice.
func (p *Processor) UploadDocument(ctx context.Context, tenantID tenant.ID, filename, content, docType string) (*UploadResult, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	if docType == "html" {
		content = cleanHTML(content)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("no text content in %q", filename)
	}

	checksum := utils.Checksum(content)

	existing, err := p.db.FindDocumentByChecksum(ctx, tenantID, checksum)
	if err != nil && err != sqlite.ErrNotFound {
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}
	if existing != nil {
		logger.Info("Duplicate upload skipped",
			zap.Int64("user_id", int64(tenantID)),
			zap.Int64("document_id", existing.ID),
			zap.String("filename", filename))
		return &UploadResult{DocumentID: existing.ID, Duplicate: true}, nil
	}

	docID, err := p.db.CreateDocument(ctx, tenantID, filename, content, docType, checksum)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	chunks := p.chunkText(content)
	logger.Info("Document chunked",
		zap.Int64("document_id", docID),
		zap.Int("chunks", len(chunks)))

	if p.vectorDB != nil && len(chunks) > 0 {
		embeddings, err := p.llmClient.GenerateBatchEmbeddings(ctx, chunks)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(chunks) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
		}

		vectorChunks := make([]milvus.DocumentChunk, 0, len(chunks))
		for i, chunkText := range chunks {
			vectorChunks = append(vectorChunks, milvus.DocumentChunk{
				ID:         fmt.Sprintf("%d_%d_%d", int64(tenantID), docID, i),
				Embedding:  embeddings[i],
				Text:       chunkText,
				DocumentID: docID,
				Filename:   filename,
				ChunkIndex: int64(i),
			})
		}

		if err := p.vectorDB.Insert(ctx, tenantID, vectorChunks); err != nil {
			return nil, fmt.Errorf("failed to index chunks: %w", err)
		}
	}

	logger.Info("Document uploaded",
		zap.Int64("user_id", int64(tenantID)),
		zap.Int64("document_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
	)

	return &UploadResult{DocumentID: docID, Chunks: len(chunks)}, nil
}

// GenerateStudyMaterial produces summary, flashcards, and quiz questions
// for a stored document in one pass. A failed generation degrades that
// one item and is reported in FailedItems; the rest still run. The
// document is marked processed at the end either way.
func (p *Processor) GenerateStudyMaterial(ctx context.Context, tenantID tenant.ID, documentID int64, opts MaterialOptions) (*MaterialResult, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	doc, err := p.db.GetDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}

	result := &MaterialResult{}

	if opts.Summary {
		summary, err := p.llmClient.GenerateSummary(ctx, doc.Content)
		if err != nil {
			logger.Warn("Summary generation failed",
				zap.Int64("document_id", documentID), zap.Error(err))
			result.FailedItems = append(result.FailedItems, fmt.Sprintf("summary: %v", err))
		} else {
			if _, err := p.db.CreateSummary(ctx, tenantID, documentID, summary); err != nil {
				return nil, fmt.Errorf("failed to store summary: %w", err)
			}
			result.Summary = summary
		}
	}

	if opts.FlashcardCount > 0 {
		cards, err := p.llmClient.GenerateFlashcards(ctx, doc.Content, opts.FlashcardCount)
		if err != nil {
			logger.Warn("Flashcard generation failed",
				zap.Int64("document_id", documentID), zap.Error(err))
			result.FailedItems = append(result.FailedItems, fmt.Sprintf("flashcards: %v", err))
		} else if len(cards) > 0 {
			n, err := p.db.CreateFlashcardsBulk(ctx, tenantID, &documentID, cards)
			if err != nil {
				return nil, fmt.Errorf("failed to store flashcards: %w", err)
			}
			result.Flashcards = n
		}
	}

	if opts.QuizCount > 0 {
		questions, err := p.llmClient.GenerateQuiz(ctx, doc.Content, opts.QuizCount)
		if err != nil {
			logger.Warn("Quiz generation failed",
				zap.Int64("document_id", documentID), zap.Error(err))
			result.FailedItems = append(result.FailedItems, fmt.Sprintf("quiz: %v", err))
		} else if len(questions) > 0 {
			n, err := p.db.CreateQuizQuestionsBulk(ctx, tenantID, &documentID, questions)
			if err != nil {
				return nil, fmt.Errorf("failed to store quiz questions: %w", err)
			}
			result.QuizQuestions = n
		}
	}

	if _, err := p.db.MarkDocumentProcessed(ctx, tenantID, documentID); err != nil {
		return nil, fmt.Errorf("failed to mark document processed: %w", err)
	}

	logger.Info("Study material generated",
		zap.Int64("user_id", int64(tenantID)),
		zap.Int64("document_id", documentID),
		zap.Int("flashcards", result.Flashcards),
		zap.Int("quiz_questions", result.QuizQuestions),
		zap.Int("failed_items", len(result.FailedItems)),
	)

	return result, nil
}

// DeleteDocument removes a document, its cascaded study material, and
// its indexed chunks.
func (p *Processor) DeleteDocument(ctx context.Context, tenantID tenant.ID, documentID int64) (bool, error) {
	deleted, err := p.db.DeleteDocument(ctx, tenantID, documentID)
	if err != nil || !deleted {
		return deleted, err
	}

	if p.vectorDB != nil {
		if err := p.vectorDB.DeleteByDocument(ctx, tenantID, documentID); err != nil {
			logger.Warn("Failed to delete indexed chunks",
				zap.Int64("document_id", documentID), zap.Error(err))
		}
	}

	return true, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
