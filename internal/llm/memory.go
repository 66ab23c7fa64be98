package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/local-insights/backend/pkg/logger"
)

const memoryExtractionPrompt = `You are a memory extraction assistant. Analyze the user's message and extract personal facts worth remembering, in JSON.

TASK:
1. Detect whether the message contains personal information worth storing
2. Categorize each fact as a key-value pair
3. Detect explicit memory commands from the user

CATEGORIES:
- profile: name, age, occupation, school, area of expertise
- preferences: response style, language, format preferences
- goals: objectives, plans, topics the user wants to learn
- context: current projects, courses, field of study
- constraints: limitations, things the user does not want

NEVER STORE:
- Passwords, national ID numbers, credit card numbers, bank accounts
- Phone numbers, street addresses, medical or health information

USER COMMANDS:
- "what do you remember about me" -> show_memory: true
- "forget X" -> forget_keys: ["X"]
- "update X to Y" -> update_pairs: {"X": "Y"}
- "stop remembering me" / "disable memory" -> disable_memory: true

Respond with ONLY this JSON, no other text:
{
  "should_write": true or false,
  "items": [
    {"category": "...", "key": "...", "value": "...", "confidence": 0.0-1.0, "importance": 0.0-1.0}
  ],
  "user_commands": {
    "show_memory": false,
    "forget_keys": [],
    "update_pairs": {},
    "disable_memory": false
  }
}`

// ExtractedMemory is one candidate fact proposed by the model.
type ExtractedMemory struct {
	Category   string  `json:"category"`
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Importance float64 `json:"importance"`
}

// MemoryCommands are explicit user instructions detected in the message.
type MemoryCommands struct {
	ShowMemory    bool              `json:"show_memory"`
	ForgetKeys    []string          `json:"forget_keys"`
	UpdatePairs   map[string]string `json:"update_pairs"`
	DisableMemory bool              `json:"disable_memory"`
}

// MemoryExtraction is the model's full verdict on one message.
type MemoryExtraction struct {
	ShouldWrite bool              `json:"should_write"`
	Items       []ExtractedMemory `json:"items"`
	Commands    MemoryCommands    `json:"user_commands"`
}

var objectJSONRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractMemory asks the model what the message reveals about the user. A
// response that is not valid JSON degrades to an empty extraction rather
// than failing the caller's request.
func (c *Client) ExtractMemory(ctx context.Context, message string) (*MemoryExtraction, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: memoryExtractionPrompt,
		UserPrompt:   fmt.Sprintf("MESSAGE:\n%s", message),
		Temperature:  0.1,
		MaxTokens:    1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract memory: %w", err)
	}

	// The payload is an object, so bypass extractJSON's array fallback.
	payload := resp.Content
	if m := fencedJSONRe.FindStringSubmatch(payload); m != nil {
		payload = m[1]
	}
	if m := objectJSONRe.FindString(payload); m != "" {
		payload = m
	}

	var extraction MemoryExtraction
	if err := json.Unmarshal([]byte(payload), &extraction); err != nil {
		logger.Warn("Memory extraction response was not valid JSON", zap.Error(err))
		return &MemoryExtraction{}, nil
	}

	return &extraction, nil
}
