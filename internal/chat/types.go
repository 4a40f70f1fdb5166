package chat

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation session. Citations are present on
// assistant turns only.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Citations  []Citation `json:"citations,omitempty"`
	TokenCount int        `json:"token_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Citation points from an answer back to the source chunk it was derived from.
type Citation struct {
	ChunkID string  `json:"chunk_id"`
	Snippet string  `json:"text"`
	Score   float32 `json:"score"`
	Source  Source  `json:"source"`
}

// Source locates a citation within the corpus.
type Source struct {
	FilePath string `json:"file_path,omitempty"`
	Chapter  string `json:"chapter,omitempty"`
	Section  string `json:"section,omitempty"`
	Heading  string `json:"heading,omitempty"`
}

// estimateTokens approximates token count from byte length. Good enough for
// budget accounting; exact tokenization is the provider's business.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}
