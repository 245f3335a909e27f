package model

import (
	"fmt"
	"strings"
	"sync"
)

// Turn is one question/answer exchange kept as conversational context.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ConversationState holds everything a session carries between turns:
// the accumulated Q/A context used to frame follow-up classification,
// the single most recent retrieval, and the flags it was produced with.
// The cached retrieval is replaced wholesale on refresh, never merged.
type ConversationState struct {
	mu sync.Mutex

	ID    string
	Turns []Turn

	Chunks      []RetrievedChunk
	Summary     string
	Hybrid      bool
	WantSummary bool
	LastQuery   string
}

func NewConversationState(id string) *ConversationState {
	return &ConversationState{ID: id}
}

// Lock serializes turns within one session. Sessions never share state,
// so this is the only lock a turn takes.
func (s *ConversationState) Lock()   { s.mu.Lock() }
func (s *ConversationState) Unlock() { s.mu.Unlock() }

// HasCache reports whether a prior retrieval is available for reuse.
func (s *ConversationState) HasCache() bool {
	return len(s.Chunks) > 0
}

// ReplaceCache installs a fresh retrieval, discarding whatever was
// cached before.
func (s *ConversationState) ReplaceCache(query string, chunks []RetrievedChunk, summary string, hybrid, wantSummary bool) {
	s.Chunks = chunks
	s.Summary = summary
	s.Hybrid = hybrid
	s.WantSummary = wantSummary
	s.LastQuery = query
}

// CachedChunks returns a copy of the cached retrieval so callers cannot
// mutate session state through the result.
func (s *ConversationState) CachedChunks() []RetrievedChunk {
	out := make([]RetrievedChunk, len(s.Chunks))
	copy(out, s.Chunks)
	return out
}

func (s *ConversationState) AppendTurn(question, answer string) {
	s.Turns = append(s.Turns, Turn{Question: question, Answer: answer})
}

// ContextText renders the most recent turns as plain text for prompt
// framing. maxTurns <= 0 means all turns.
func (s *ConversationState) ContextText(maxTurns int) string {
	turns := s.Turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	if len(turns) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n", t.Question, t.Answer)
	}
	return strings.TrimSpace(sb.String())
}
