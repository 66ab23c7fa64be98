package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/local-insights/backend/internal/vector/milvus"
)

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "What is mitosis?", titleFrom("  What is mitosis?  "))

	long := strings.Repeat("x", 100)
	title := titleFrom(long)
	assert.Equal(t, maxTitleLength+3, len(title))
	assert.True(t, strings.HasSuffix(title, "..."))

	short := strings.Repeat("x", maxTitleLength)
	assert.Equal(t, short, titleFrom(short), "exactly at the limit is not truncated")
}

func TestFormatContextEmpty(t *testing.T) {
	assert.Equal(t, "", formatContext(nil))
}

func TestFormatContextNumbersAndTruncates(t *testing.T) {
	results := []milvus.SearchResult{
		{Filename: "bio.txt", ChunkIndex: 0, Text: "Cells divide."},
		{Filename: "bio.txt", ChunkIndex: 3, Text: strings.Repeat("long ", 200)},
	}

	out := formatContext(results)
	assert.Contains(t, out, "[1] bio.txt (chunk 0)\nCells divide.")
	assert.Contains(t, out, "[2] bio.txt (chunk 3)")

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), maxChunkContext+40)
	}
}
