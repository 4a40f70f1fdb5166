package chunker

import (
	"bytes"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

// Chunk is a bounded, positionally-tagged slice of a document's text. Offsets
// are byte offsets into the source the chunk was produced from.
type Chunk struct {
	Index        int    // Ordinal position within the document.
	Text         string // Raw chunk text, always non-empty.
	StartChar    int
	EndChar      int
	HeadingLevel int    // Level of the nearest preceding heading (0 = none).
	HeadingText  string // Text of the nearest preceding heading.
	Chapter      string // Governing H1 text.
	Section      string // Governing H2 text.
	TokenCount   int    // Approximate token count.
}

// Options controls chunk sizing.
type Options struct {
	TargetTokens  int // Target tokens per chunk (default 500).
	OverlapTokens int // Token overlap between adjacent chunks (default 50).
}

// DefaultOptions returns the standard chunking parameters.
func DefaultOptions() Options {
	return Options{TargetTokens: 500, OverlapTokens: 50}
}

// Chunking a document twice with identical content must yield identical
// output, so everything below is purely positional and stateless.

// Split cuts markdown text into bounded, overlapping chunks. Windows never
// cross heading boundaries and never split inside a heading line; every chunk
// carries the nearest preceding heading plus the governing chapter (H1) and
// section (H2). A document that fits within the target yields exactly one
// chunk; a document with headings but no body text yields zero chunks.
func Split(text string, opts Options) ([]Chunk, error) {
	if opts.TargetTokens <= 0 {
		return nil, errors.New("chunker: target_tokens must be > 0")
	}
	if opts.OverlapTokens < 0 || opts.OverlapTokens >= opts.TargetTokens {
		return nil, errors.New("chunker: overlap_tokens must be >= 0 and < target_tokens")
	}

	sections := splitSections(text)

	// Collect all body words up front: a document that fits the target budget
	// in full is emitted as a single chunk regardless of heading structure.
	var total int
	var allWords []word
	for _, sec := range sections {
		for _, w := range sec.words {
			total += w.tokens
			allWords = append(allWords, w)
		}
	}
	if len(allWords) == 0 {
		return nil, nil
	}
	if total <= opts.TargetTokens {
		first := firstSectionWithBody(sections)
		c := makeChunk(text, allWords, 0, first)
		return []Chunk{c}, nil
	}

	var chunks []Chunk
	for _, sec := range sections {
		for _, win := range slideWindows(sec.words, opts) {
			chunks = append(chunks, makeChunk(text, win, len(chunks), sec))
		}
	}
	return chunks, nil
}

// word is a single whitespace-delimited token with its source position.
type word struct {
	start  int
	end    int
	tokens int
}

// section is a contiguous body region governed by one heading.
type section struct {
	headingLevel int
	headingText  string
	chapter      string
	section      string
	words        []word
}

func firstSectionWithBody(sections []section) section {
	for _, s := range sections {
		if len(s.words) > 0 {
			return s
		}
	}
	return section{}
}

func makeChunk(src string, words []word, index int, sec section) Chunk {
	start := words[0].start
	end := words[len(words)-1].end
	tokens := 0
	for _, w := range words {
		tokens += w.tokens
	}
	return Chunk{
		Index:        index,
		Text:         src[start:end],
		StartChar:    start,
		EndChar:      end,
		HeadingLevel: sec.headingLevel,
		HeadingText:  sec.headingText,
		Chapter:      sec.chapter,
		Section:      sec.section,
		TokenCount:   tokens,
	}
}

// slideWindows partitions a section's words into overlapping windows of
// roughly TargetTokens each. The next window starts where the previous
// window's trailing OverlapTokens began, so adjacent chunks share context.
func slideWindows(words []word, opts Options) [][]word {
	var windows [][]word
	start := 0
	for start < len(words) {
		sum := 0
		end := start
		for end < len(words) && sum+words[end].tokens <= opts.TargetTokens {
			sum += words[end].tokens
			end++
		}
		if end == start {
			// Single word larger than the budget: admit it alone.
			end = start + 1
		}
		windows = append(windows, words[start:end])
		if end >= len(words) {
			break
		}

		// Walk back from the window end to find the overlap start.
		next := end
		overlap := 0
		for next > start+1 && overlap+words[next-1].tokens <= opts.OverlapTokens {
			overlap += words[next-1].tokens
			next--
		}
		start = next
	}
	return windows
}

// estimateTokens approximates the token count of a span of text.
// Rough estimate: 1 token ~= 4 characters.
func estimateTokens(n int) int {
	t := (n + 3) / 4
	if t < 1 {
		t = 1
	}
	return t
}

// splitSections parses the markdown source and returns body regions delimited
// by headings, tracking the governing chapter (H1) and section (H2) for each.
// Heading detection is delegated to goldmark so that '#' lines inside fenced
// code blocks are not mistaken for headings.
func splitSections(src string) []section {
	source := []byte(src)
	md := goldmark.New()
	doc := md.Parser().Parse(gtext.NewReader(source))

	type headingPos struct {
		lineStart int
		lineEnd   int
		level     int
		text      string
	}
	var headings []headingPos

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		first := lines.At(0)
		last := lines.At(lines.Len() - 1)

		lineStart := first.Start
		if i := bytes.LastIndexByte(source[:first.Start], '\n'); i >= 0 {
			lineStart = i + 1
		} else {
			lineStart = 0
		}
		lineEnd := last.Stop
		if i := bytes.IndexByte(source[last.Stop:], '\n'); i >= 0 {
			lineEnd = last.Stop + i + 1
		} else {
			lineEnd = len(source)
		}

		headings = append(headings, headingPos{
			lineStart: lineStart,
			lineEnd:   lineEnd,
			level:     h.Level,
			text:      strings.TrimSpace(string(source[first.Start:last.Stop])),
		})
		return ast.WalkSkipChildren, nil
	})

	var sections []section
	cur := section{}
	bodyStart := 0
	for _, h := range headings {
		if h.lineStart > bodyStart {
			cur.words = scanWords(src, bodyStart, h.lineStart)
			sections = append(sections, cur)
		}
		next := section{headingLevel: h.level, headingText: h.text, chapter: cur.chapter, section: cur.section}
		switch h.level {
		case 1:
			next.chapter = h.text
			next.section = ""
		case 2:
			next.section = h.text
		}
		cur = next
		bodyStart = h.lineEnd
	}
	if bodyStart < len(src) {
		cur.words = scanWords(src, bodyStart, len(src))
		sections = append(sections, cur)
	}
	return sections
}

// scanWords tokenizes src[start:end] into whitespace-delimited words with
// absolute source offsets.
func scanWords(src string, start, end int) []word {
	var words []word
	i := start
	for i < end {
		for i < end && isSpace(src[i]) {
			i++
		}
		if i >= end {
			break
		}
		ws := i
		for i < end && !isSpace(src[i]) {
			i++
		}
		words = append(words, word{start: ws, end: i, tokens: estimateTokens(i - ws)})
	}
	return words
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
