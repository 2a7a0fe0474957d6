package ingest

import (
	"strings"
	"unicode"
)

// Chunker splits text into overlapping chunks on sentence boundaries.
// Size is the target chunk length in characters; Overlap is how many
// trailing characters of one chunk reappear at the start of the next, both
// measured in whole sentences.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker creates a Chunker. Non-positive size falls back to 800 and a
// negative or oversized overlap to 100.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 100
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Chunk splits text into chunks of at most Size characters, never breaking
// inside a sentence. A single sentence longer than Size becomes its own
// chunk.
func (c *Chunker) Chunk(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	for i := 0; i < len(sentences); i++ {
		s := sentences[i]
		sepLen := 0
		if currentLen > 0 {
			sepLen = 1
		}

		if currentLen > 0 && currentLen+sepLen+len(s) > c.Size {
			chunks = append(chunks, strings.Join(current, " "))
			current, currentLen = c.carryOverlap(current)
			sepLen = 0
			if currentLen > 0 {
				sepLen = 1
			}
		}

		current = append(current, s)
		currentLen += sepLen + len(s)
	}

	if len(current) > 0 {
		chunk := strings.Join(current, " ")
		// Avoid emitting a final chunk that is pure overlap of the
		// previous one.
		if len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1], chunk) {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}

// carryOverlap returns the trailing sentences of a finished chunk that seed
// the next one, totaling at most Overlap characters.
func (c *Chunker) carryOverlap(sentences []string) ([]string, int) {
	if c.Overlap == 0 {
		return nil, 0
	}

	var carried []string
	total := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		s := sentences[i]
		add := len(s)
		if total > 0 {
			add++
		}
		if total+add > c.Overlap {
			break
		}
		carried = append([]string{s}, carried...)
		total += add
	}
	return carried, total
}

// splitSentences splits text on sentence-ending punctuation followed by
// whitespace. Whitespace runs, including newlines, collapse to single
// spaces.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		// Consume trailing closing quotes or brackets.
		end := i + 1
		for end < len(runes) && (runes[end] == '"' || runes[end] == '\'' || runes[end] == ')') {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start:end]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}
		start = end
		i = end - 1
	}
	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
