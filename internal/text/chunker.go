package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize = 1200
	DefaultOverlap   = 150
)

// Chunk is a contiguous span of extracted document text. Index is
// sequential across the whole document; PageNumber is 1-based.
type Chunk struct {
	Content    string
	Index      int
	PageNumber int
}

var sentenceRe = regexp.MustCompile(`[^.!?\n]+[.!?\n]*\s*`)

// SplitPages splits per-page text extracts into embeddable chunks of at
// most size bytes, preferring sentence boundaries, with up to overlap
// bytes of trailing context repeated at the start of the next chunk.
// The split is a pure function of its input, so re-ingesting the same
// document yields the same chunk set.
func SplitPages(pages []string, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []Chunk
	idx := 0
	for p, page := range pages {
		for _, piece := range splitText(normalize(page), size, overlap) {
			chunks = append(chunks, Chunk{Content: piece, Index: idx, PageNumber: p + 1})
			idx++
		}
	}
	return chunks
}

// normalize collapses Windows line endings and runs of blank lines so the
// same logical text always chunks identically regardless of extraction
// artifacts.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

func splitText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}

	var out []string
	var buf strings.Builder
	for _, sentence := range sentences {
		// A single sentence longer than the chunk size is hard-split.
		if len(sentence) > size {
			if buf.Len() > 0 {
				out = append(out, strings.TrimSpace(buf.String()))
				buf.Reset()
			}
			for _, piece := range hardSplit(sentence, size) {
				out = append(out, piece)
			}
			continue
		}

		if buf.Len()+len(sentence) > size {
			chunk := strings.TrimSpace(buf.String())
			out = append(out, chunk)
			buf.Reset()
			if overlap > 0 {
				buf.WriteString(tail(chunk, overlap))
				buf.WriteString(" ")
			}
		}
		buf.WriteString(sentence)
	}

	if s := strings.TrimSpace(buf.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// hardSplit cuts an oversized sentence into pieces of at most size bytes,
// never splitting a multibyte rune. Text without ASCII sentence
// terminators (CJK prose in particular) always lands here, so the cut
// point backs up to the nearest rune start.
func hardSplit(s string, size int) []string {
	var out []string
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			// size is smaller than the first rune; emit the whole rune.
			_, cut = utf8.DecodeRuneInString(s)
		}
		out = append(out, strings.TrimSpace(s[:cut]))
		s = s[cut:]
	}
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// tail returns at most the last n bytes of s, advanced to a rune start and
// then to the next word boundary when one exists.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	cut := s[start:]
	if i := strings.IndexByte(cut, ' '); i >= 0 {
		cut = cut[i+1:]
	}
	return cut
}
