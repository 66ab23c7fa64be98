package ingestion

import (
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// chunkText splits text into retrieval chunks of roughly chunkSize
// characters, breaking on sentence boundaries so a chunk never cuts a
// sentence in half. Consecutive chunks share trailing sentences up to
// chunkOverlap characters of context.
func (p *Processor) chunkText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, sent := range sentences {
		if currentLen+len(sent) > p.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			overlap := overlapTail(current, p.chunkOverlap)
			current = overlap
			currentLen = 0
			for _, s := range current {
				currentLen += len(s) + 1
			}
		}

		current = append(current, sent)
		currentLen += len(sent) + 1
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

func splitSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		// Segmentation should not fail on plain text, but fall back to
		// whitespace-delimited pseudo-sentences rather than dropping the
		// document.
		return strings.Fields(text)
	}

	var out []string
	for _, s := range doc.Sentences() {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// overlapTail returns the trailing sentences of a chunk that fit within
// the overlap budget, oldest first.
func overlapTail(sentences []string, budget int) []string {
	if budget <= 0 {
		return nil
	}

	total := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		total += len(sentences[i]) + 1
		if total > budget {
			break
		}
		start = i
	}

	tail := make([]string, len(sentences)-start)
	copy(tail, sentences[start:])
	return tail
}
