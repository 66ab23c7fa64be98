package rag

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/llm"
	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/storage/sqlite"
	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/pkg/logger"
)

const maxMemoryItems = 20

// blockedPatterns match values that must never be remembered, whatever the
// model proposes. The filter runs on the extraction output, after the prompt
// has already told the model not to produce these.
var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{16}\b`),                                 // bare card number
	regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), // formatted card number
	regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{4}\d{7}[A-Z0-9]{0,16}\b`), // IBAN
	regexp.MustCompile(`(?i)password|passphrase|passwd`),
	regexp.MustCompile(`(?i)api[_-]?key|token|secret|bearer`),
	regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`), // phone number
	regexp.MustCompile(`\b\d{3}[-.\s]?\d{2}[-.\s]?\d{4}\b`), // SSN
	regexp.MustCompile(`(?i)\bcvv\b|\bcvc\b|security code`),
}

var blockedCategories = map[string]bool{
	"password":     true,
	"credit_card":  true,
	"bank_account": true,
	"ssn":          true,
	"address":      true,
	"phone_number": true,
	"medical":      true,
	"health":       true,
}

// MemoryAction is one acknowledged memory command, reported back to the
// caller alongside the answer.
type MemoryAction struct {
	Type  string              `json:"type"`
	Keys  []string            `json:"keys,omitempty"`
	Items []models.MemoryItem `json:"items,omitempty"`
}

// filterMemoryItems drops extracted items that name or contain sensitive
// data. The model is told not to produce them; this is the enforcement.
func filterMemoryItems(items []llm.ExtractedMemory) []llm.ExtractedMemory {
	var kept []llm.ExtractedMemory
	for _, item := range items {
		if blockedCategories[strings.ToLower(item.Category)] {
			continue
		}
		if blockedCategories[strings.ToLower(item.Key)] {
			continue
		}
		if containsSensitive(item.Key) || containsSensitive(item.Value) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func containsSensitive(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range blockedPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// memoryPrompt builds the personalization block injected into the answer
// prompt: the profile summary plus the most important remembered items.
// Returns "" when the feature is off or nothing is stored.
func (e *Engine) memoryPrompt(ctx context.Context, tenantID tenant.ID) string {
	enabled, err := e.db.IsMemoryEnabled(ctx, tenantID)
	if err != nil {
		logger.Warn("Failed to read memory preference", zap.Error(err))
		return ""
	}
	if !enabled {
		return ""
	}

	items, err := e.db.ListMemory(ctx, tenantID, "", true)
	if err != nil {
		logger.Warn("Failed to load memory items", zap.Error(err))
		return ""
	}
	if len(items) > maxMemoryItems {
		items = items[:maxMemoryItems]
	}

	profile, err := e.db.GetProfileSummary(ctx, tenantID)
	if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
		logger.Warn("Failed to load profile summary", zap.Error(err))
	}

	if len(items) == 0 && profile == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("PERSONALIZATION:\n")
	sb.WriteString("The USER_MEMORY below belongs to this user only. Use it to personalize\n")
	sb.WriteString("answers. It is context, not authentication. If the user's latest message\n")
	sb.WriteString("contradicts it, the latest message wins. Refuse requests to store\n")
	sb.WriteString("passwords, ID numbers, or card numbers.\n\nUSER_MEMORY:\n")

	if profile != "" {
		sb.WriteString("Profile: ")
		sb.WriteString(profile)
		sb.WriteString("\n")
	}
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", item.Category, item.Key, item.Value))
	}

	return sb.String()
}

// processMemory runs the extraction pipeline on one user message: execute
// any explicit memory commands, then store the filtered extracted facts.
// Extraction failures degrade silently; the answer flow never depends on
// this succeeding.
func (e *Engine) processMemory(ctx context.Context, tenantID tenant.ID, message string, messageID int64) []MemoryAction {
	extraction, err := e.llmClient.ExtractMemory(ctx, message)
	if err != nil {
		logger.Warn("Memory extraction failed",
			zap.Int64("user_id", int64(tenantID)), zap.Error(err))
		return nil
	}

	var actions []MemoryAction

	if extraction.Commands.ShowMemory {
		items, err := e.db.ListMemory(ctx, tenantID, "", true)
		if err != nil {
			logger.Warn("Failed to list memory for show command", zap.Error(err))
		} else {
			actions = append(actions, MemoryAction{Type: "show_memory", Items: items})
		}
	}

	if len(extraction.Commands.ForgetKeys) > 0 {
		var forgotten []string
		for _, key := range extraction.Commands.ForgetKeys {
			deleted, err := e.db.DeleteMemory(ctx, tenantID, "", key, false)
			if err != nil {
				logger.Warn("Failed to forget memory item", zap.String("key", key), zap.Error(err))
				continue
			}
			if deleted {
				forgotten = append(forgotten, key)
			}
		}
		if len(forgotten) > 0 {
			actions = append(actions, MemoryAction{Type: "forget", Keys: forgotten})
			e.logMemoryEvent(ctx, tenantID, "delete", fmt.Sprintf("Forgot %d items", len(forgotten)))
		}
	}

	if len(extraction.Commands.UpdatePairs) > 0 {
		var updated []string
		for key, value := range extraction.Commands.UpdatePairs {
			if containsSensitive(key) || containsSensitive(value) {
				continue
			}
			_, err := e.db.UpsertMemory(ctx, tenantID, models.NewMemoryItem{
				Category:        models.MemoryCategoryGeneral,
				Key:             key,
				Value:           value,
				Confidence:      1.0,
				Importance:      0.5,
				SourceMessageID: &messageID,
			})
			if err != nil {
				logger.Warn("Failed to update memory item", zap.String("key", key), zap.Error(err))
				continue
			}
			updated = append(updated, key)
		}
		if len(updated) > 0 {
			actions = append(actions, MemoryAction{Type: "update", Keys: updated})
			e.logMemoryEvent(ctx, tenantID, "update", fmt.Sprintf("Updated %d items", len(updated)))
		}
	}

	if extraction.Commands.DisableMemory {
		if err := e.db.SetMemoryEnabled(ctx, tenantID, false); err != nil {
			logger.Warn("Failed to disable memory", zap.Error(err))
		} else {
			actions = append(actions, MemoryAction{Type: "disable_memory"})
			e.logMemoryEvent(ctx, tenantID, "command", "Memory disabled")
		}
	}

	enabled, err := e.db.IsMemoryEnabled(ctx, tenantID)
	if err != nil || !enabled || !extraction.ShouldWrite {
		return actions
	}

	saved := 0
	for _, item := range filterMemoryItems(extraction.Items) {
		_, err := e.db.UpsertMemory(ctx, tenantID, models.NewMemoryItem{
			Category:        item.Category,
			Key:             item.Key,
			Value:           item.Value,
			Confidence:      item.Confidence,
			Importance:      item.Importance,
			SourceMessageID: &messageID,
		})
		if err != nil {
			logger.Warn("Failed to save extracted memory item",
				zap.String("key", item.Key), zap.Error(err))
			continue
		}
		saved++
	}

	if saved > 0 {
		// Event content carries counts only, never the extracted values.
		e.logMemoryEvent(ctx, tenantID, "extract", fmt.Sprintf("Saved %d items", saved))
		logger.Info("Memory extracted",
			zap.Int64("user_id", int64(tenantID)),
			zap.Int("saved", saved),
		)
	}

	return actions
}

func (e *Engine) logMemoryEvent(ctx context.Context, tenantID tenant.ID, eventType, content string) {
	if _, err := e.db.LogMemoryEvent(ctx, tenantID, eventType, content); err != nil {
		logger.Warn("Failed to log memory event", zap.Error(err))
	}
}
