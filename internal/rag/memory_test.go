package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/local-insights/backend/internal/llm"
)

func TestFilterMemoryItemsDropsSensitiveValues(t *testing.T) {
	items := []llm.ExtractedMemory{
		{Category: "preferences", Key: "study_time", Value: "prefers mornings"},
		{Category: "general", Key: "card", Value: "4111 1111 1111 1111"},
		{Category: "general", Key: "card_bare", Value: "4111111111111111"},
		{Category: "general", Key: "login", Value: "my password is hunter2"},
		{Category: "general", Key: "creds", Value: "api_key sk-abc123"},
		{Category: "general", Key: "phone", Value: "call me at 555-867-5309"},
		{Category: "general", Key: "ssn", Value: "123-45-6789"},
		{Category: "goals", Key: "exam", Value: "pass the biology final"},
	}

	kept := filterMemoryItems(items)
	assert.Len(t, kept, 2)
	assert.Equal(t, "study_time", kept[0].Key)
	assert.Equal(t, "exam", kept[1].Key)
}

func TestFilterMemoryItemsDropsBlockedCategories(t *testing.T) {
	items := []llm.ExtractedMemory{
		{Category: "medical", Key: "condition", Value: "asthma"},
		{Category: "Credit_Card", Key: "bank", Value: "acme bank"},
		{Category: "address", Key: "home", Value: "somewhere"},
		{Category: "profile", Key: "field", Value: "medicine"},
	}

	kept := filterMemoryItems(items)
	assert.Len(t, kept, 1)
	assert.Equal(t, "field", kept[0].Key)
}

func TestFilterMemoryItemsChecksKeyAsWellAsValue(t *testing.T) {
	items := []llm.ExtractedMemory{
		{Category: "general", Key: "password_hint", Value: "blue"},
		{Category: "general", Key: "note", Value: "likes flashcards"},
	}

	kept := filterMemoryItems(items)
	assert.Len(t, kept, 1)
	assert.Equal(t, "note", kept[0].Key)
}

func TestContainsSensitive(t *testing.T) {
	sensitive := []string{
		"4111111111111111",
		"4111-1111-1111-1111",
		"DE89370400440532013000",
		"my Password is secret",
		"here is a bearer token",
		"555.867.5309",
		"123-45-6789",
		"the CVV on the back",
	}
	for _, s := range sensitive {
		assert.True(t, containsSensitive(s), "expected sensitive: %q", s)
	}

	safe := []string{
		"prefers studying in the morning",
		"taking a 12 week anatomy course",
		"exam on chapter 7",
	}
	for _, s := range safe {
		assert.False(t, containsSensitive(s), "expected safe: %q", s)
	}
}
