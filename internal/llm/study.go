package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/pkg/logger"
)

// Source text beyond these limits is truncated rather than chunked; the
// model only needs a representative slice to produce study material.
const (
	maxSummaryInput  = 6000
	maxMaterialInput = 5000
)

const summarySystemPrompt = `You are a study assistant. Analyze the given text and produce a structured summary in Markdown with these sections:

## Topic
[Main subject and context]

## Key Concepts
- [Concept]: short explanation (3-5 entries)

## Summary
[3-5 paragraphs covering the main ideas]

## Important Points
1. [Point] (3-5 entries)

## Related Topics
- [Topic] (2-3 entries)

Answer in the same language as the source text.`

const flashcardSystemPrompt = `You are a study assistant. Create flashcards from the given text.

Output each card in this JSON format:

` + "```json" + `
[
  {
    "question": "A clear, specific question",
    "answer": "A short, memorable answer (1-2 sentences)",
    "difficulty": "easy" or "medium" or "hard"
  }
]
` + "```" + `

Rules:
1. Questions must test the important concepts in the text
2. Answers must be short and memorizable
3. Balance the difficulty levels
4. Respond with the JSON only, nothing else`

const quizSystemPrompt = `You are a study assistant. Create quiz questions from the given text.

Output each question in this JSON format:

` + "```json" + `
[
  {
    "type": "multiple_choice" or "open_ended" or "true_false",
    "question": "Question text",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "answer": "The correct answer",
    "explanation": "Why this answer is correct"
  }
]
` + "```" + `

Rules:
1. Multiple choice questions must have exactly 4 options
2. True/false and open-ended questions leave options empty
3. Every question must have an explanation
4. Balance the difficulty levels
5. Respond with the JSON only`

// GenerateSummary produces a structured Markdown summary of the text.
func (c *Client) GenerateSummary(ctx context.Context, text string) (string, error) {
	if len(text) > maxSummaryInput {
		text = text[:maxSummaryInput] + "\n\n[text truncated]"
	}

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		UserPrompt:   fmt.Sprintf("Summarize this text:\n\n%s", text),
		Temperature:  0.3,
		MaxTokens:    1500,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	logger.Info("Summary generated", zap.Int("summary_length", len(resp.Content)))

	return resp.Content, nil
}

// GenerateFlashcards produces up to count question/answer cards from the
// text. Items the model returns without a question or answer are dropped
// rather than failing the batch.
func (c *Client) GenerateFlashcards(ctx context.Context, text string, count int) ([]models.NewFlashcard, error) {
	if len(text) > maxMaterialInput {
		text = text[:maxMaterialInput]
	}

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: flashcardSystemPrompt,
		UserPrompt:   fmt.Sprintf("Create %d flashcards from this text:\n\n%s", count, text),
		Temperature:  0.2,
		MaxTokens:    2000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate flashcards: %w", err)
	}

	var raw []struct {
		Question   string `json:"question"`
		Answer     string `json:"answer"`
		Difficulty string `json:"difficulty"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &raw); err != nil {
		logger.Warn("Flashcard response was not valid JSON", zap.Error(err))
		return nil, nil
	}

	var cards []models.NewFlashcard
	for _, item := range raw {
		if item.Question == "" || item.Answer == "" {
			continue
		}
		difficulty := item.Difficulty
		if difficulty == "" {
			difficulty = "medium"
		}
		cards = append(cards, models.NewFlashcard{
			Question:   item.Question,
			Answer:     item.Answer,
			Difficulty: difficulty,
		})
	}

	logger.Info("Flashcards generated", zap.Int("count", len(cards)))

	return cards, nil
}

// GenerateQuiz produces up to count quiz questions from the text.
func (c *Client) GenerateQuiz(ctx context.Context, text string, count int) ([]models.NewQuizQuestion, error) {
	if len(text) > maxMaterialInput {
		text = text[:maxMaterialInput]
	}

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: quizSystemPrompt,
		UserPrompt:   fmt.Sprintf("Create %d quiz questions from this text:\n\n%s", count, text),
		Temperature:  0.2,
		MaxTokens:    3000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate quiz: %w", err)
	}

	var raw []struct {
		Type        string   `json:"type"`
		Question    string   `json:"question"`
		Options     []string `json:"options"`
		Answer      string   `json:"answer"`
		Explanation string   `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &raw); err != nil {
		logger.Warn("Quiz response was not valid JSON", zap.Error(err))
		return nil, nil
	}

	var questions []models.NewQuizQuestion
	for _, item := range raw {
		if item.Question == "" || item.Answer == "" {
			continue
		}
		qType := item.Type
		if qType == "" {
			qType = models.QuestionOpenEnded
		}
		questions = append(questions, models.NewQuizQuestion{
			QuestionType:  qType,
			QuestionText:  item.Question,
			Options:       item.Options,
			CorrectAnswer: item.Answer,
			Explanation:   item.Explanation,
		})
	}

	logger.Info("Quiz questions generated", zap.Int("count", len(questions)))

	return questions, nil
}

const answerSystemPrompt = `You are a personal study assistant answering questions about the user's uploaded documents.

Your responses must:
1. Be grounded ONLY in the provided document excerpts
2. Say so plainly when the excerpts do not cover the question
3. Stay in the language the user writes in

Be concise and helpful.`

// GenerateAnswer produces a conversational answer grounded in retrieved
// document excerpts, with prior turns supplied as history. A non-empty
// personalization block is appended to the system prompt; it carries the
// user's remembered profile and preferences.
func (c *Client) GenerateAnswer(ctx context.Context, question, docContext, personalization string, history []models.Message) (string, error) {
	systemPrompt := answerSystemPrompt
	if personalization != "" {
		systemPrompt += "\n\n" + personalization
	}

	var sb strings.Builder
	if docContext != "" {
		sb.WriteString("Document excerpts:\n")
		sb.WriteString(docContext)
		sb.WriteString("\n\n")
	}
	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, m := range history {
			sb.WriteString(m.Role)
			sb.WriteString(": ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   sb.String(),
		Temperature:  0.4,
		MaxTokens:    2048,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	logger.Info("Answer generated",
		zap.Int("question_length", len(question)),
		zap.Int("response_length", len(resp.Content)),
	)

	return resp.Content, nil
}

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	arrayJSONRe  = regexp.MustCompile(`(?s)\[.*\]`)
)

// extractJSON pulls a JSON payload out of a model response, which may
// wrap it in a Markdown code fence or surround it with prose.
func extractJSON(content string) string {
	if m := fencedJSONRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	if m := arrayJSONRe.FindString(content); m != "" {
		return m
	}
	return strings.TrimSpace(content)
}
