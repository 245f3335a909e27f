package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/intellipatent/intellipatent/internal/model"
)

// Store keeps conversation state in memory, evicted by LRU pressure or TTL.
// A session that falls out of the store simply starts over on its next turn.
type Store struct {
	cache *expirable.LRU[string, *model.ConversationState]
	ttl   time.Duration
}

func NewStore(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = 10000
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{
		cache: expirable.NewLRU[string, *model.ConversationState](size, nil, ttl),
		ttl:   ttl,
	}
}

// Create allocates a fresh session and returns its id.
func (s *Store) Create() *model.ConversationState {
	id := uuid.NewString()
	st := model.NewConversationState(id)
	s.cache.Add(id, st)
	return st
}

// Get returns the state for id, creating an empty one when the session
// token is still valid but its state was evicted.
func (s *Store) Get(id string) *model.ConversationState {
	if st, ok := s.cache.Get(id); ok {
		return st
	}
	st := model.NewConversationState(id)
	s.cache.Add(id, st)
	return st
}

func (s *Store) Delete(id string) bool {
	return s.cache.Remove(id)
}

func (s *Store) Len() int {
	return s.cache.Len()
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Sweep evicts sessions past their TTL. Lookups already expire entries
// lazily; the sweep keeps idle sessions from lingering between them.
func (s *Store) Sweep() int {
	removed := 0
	for _, k := range s.cache.Keys() {
		if _, ok := s.cache.Get(k); !ok {
			if s.cache.Remove(k) {
				removed++
			}
		}
	}
	return removed
}
