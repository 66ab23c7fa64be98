package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONFencedBlock(t *testing.T) {
	content := "Here are your flashcards:\n```json\n[{\"question\": \"Q\", \"answer\": \"A\"}]\n```\nLet me know if you need more."
	assert.Equal(t, `[{"question": "Q", "answer": "A"}]`, extractJSON(content))
}

func TestExtractJSONFenceWithoutLanguage(t *testing.T) {
	content := "```\n[1, 2, 3]\n```"
	assert.Equal(t, "[1, 2, 3]", extractJSON(content))
}

func TestExtractJSONBareArrayInProse(t *testing.T) {
	content := `Sure! [{"question": "Q", "answer": "A"}] Hope that helps.`
	assert.Equal(t, `[{"question": "Q", "answer": "A"}]`, extractJSON(content))
}

func TestExtractJSONPlainPayload(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractJSON("  {\"a\": 1}  \n"))
}

func TestExtractJSONPrefersFenceOverBareArray(t *testing.T) {
	// A fence containing an array should win over array matching, which
	// would otherwise grab from the first [ to the last ].
	content := "Options are [a] or [b]:\n```json\n[\"real\"]\n```"
	assert.Equal(t, `["real"]`, extractJSON(content))
}

func TestExtractJSONMultilineArray(t *testing.T) {
	content := "```json\n[\n  {\"question\": \"Q1\", \"answer\": \"A1\"},\n  {\"question\": \"Q2\", \"answer\": \"A2\"}\n]\n```"
	assert.Equal(t, "[\n  {\"question\": \"Q1\", \"answer\": \"A1\"},\n  {\"question\": \"Q2\", \"answer\": \"A2\"}\n]", extractJSON(content))
}
