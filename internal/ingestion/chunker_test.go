package ingestion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProcessor(chunkSize, chunkOverlap int) *Processor {
	return &Processor{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

func TestChunkTextEmpty(t *testing.T) {
	p := testProcessor(100, 20)
	assert.Nil(t, p.chunkText(""))
	assert.Nil(t, p.chunkText("   \n\t  "))
}

func TestChunkTextSingleShortText(t *testing.T) {
	p := testProcessor(500, 50)
	chunks := p.chunkText("Mitosis is cell division. It produces two daughter cells.")
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "Mitosis")
	assert.Contains(t, chunks[0], "daughter cells")
}

func TestChunkTextRespectsSentenceBoundaries(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "Sentence number %d talks about a distinct topic in the source material. ", i)
	}

	p := testProcessor(200, 0)
	chunks := p.chunkText(b.String())
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.True(t, strings.HasSuffix(strings.TrimSpace(chunk), "."),
			"chunk ends mid-sentence: %q", chunk)
	}
}

func TestChunkTextOverlapSharesContext(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "Sentence number %d talks about a distinct topic in the source material. ", i)
	}

	p := testProcessor(200, 100)
	chunks := p.chunkText(b.String())
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prevSentences := strings.SplitAfter(chunks[i-1], ". ")
		last := strings.TrimSpace(prevSentences[len(prevSentences)-1])
		if last == "" && len(prevSentences) > 1 {
			last = strings.TrimSpace(prevSentences[len(prevSentences)-2])
		}
		assert.Contains(t, chunks[i], last,
			"chunk %d does not carry over the tail of chunk %d", i, i-1)
	}
}

func TestChunkTextOversizeSentence(t *testing.T) {
	// A single sentence longer than chunkSize still lands in a chunk by
	// itself instead of being dropped or split.
	long := "This single sentence is deliberately far longer than the configured chunk size so it cannot fit within one chunk budget at all."
	p := testProcessor(40, 10)
	chunks := p.chunkText(long)
	require.NotEmpty(t, chunks)
	assert.Contains(t, strings.Join(chunks, " "), "deliberately far longer")
}

func TestOverlapTail(t *testing.T) {
	sentences := []string{"aaaa", "bbbb", "cccc", "dddd"}

	assert.Nil(t, overlapTail(sentences, 0))
	assert.Equal(t, []string{"dddd"}, overlapTail(sentences, 5))
	assert.Equal(t, []string{"cccc", "dddd"}, overlapTail(sentences, 10))
	assert.Equal(t, sentences, overlapTail(sentences, 1000))
}

func TestCleanHTMLStripsChrome(t *testing.T) {
	html := `<html><head><style>body { color: red; }</style></head>
	<body>
	<nav>Home | About</nav>
	<header>Site title</header>
	<p>Photosynthesis converts light   into chemical energy.</p>
	<script>alert("hi")</script>
	<footer>Copyright</footer>
	</body></html>`

	text := cleanHTML(html)
	assert.Equal(t, "Photosynthesis converts light into chemical energy.", text)
}

func TestCleanHTMLFragmentWithoutBody(t *testing.T) {
	text := cleanHTML("<p>Just a fragment.</p>")
	assert.Equal(t, "Just a fragment.", text)
}
