package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// pairKey canonically identifies an unordered user pair. Both orderings of
// the same two users produce the same key.
type pairKey string

func makePairKey(a, b UserID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey(fmt.Sprintf("%d:%d", a, b))
}

// Session is an active anonymous conversation between exactly two users.
type Session struct {
	ID        string // uuid, for audit and metrics correlation
	A, B      UserID
	CreatedAt time.Time
}

// Partner returns the other participant, or 0 if user is not a participant.
func (s *Session) Partner(user UserID) UserID {
	switch user {
	case s.A:
		return s.B
	case s.B:
		return s.A
	}
	return 0
}

// sessionTable is the single source of truth for who is talking to whom.
// Both directions of a pairing are always inserted and removed together, so
// a reader never observes A→B without B→A. Not goroutine-safe; the engine
// serializes access under its own mutex.
type sessionTable struct {
	partners map[UserID]UserID
	byPair   map[pairKey]*Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		partners: make(map[UserID]UserID),
		byPair:   make(map[pairKey]*Session),
	}
}

// install creates a session for {a, b}, inserting both directed entries.
func (t *sessionTable) install(a, b UserID, now time.Time) *Session {
	s := &Session{ID: uuid.New().String(), A: a, B: b, CreatedAt: now}
	t.partners[a] = b
	t.partners[b] = a
	t.byPair[makePairKey(a, b)] = s
	return s
}

// remove tears down the session user belongs to, deleting both directed
// entries together. Returns the removed session, or nil if user has none.
func (t *sessionTable) remove(user UserID) *Session {
	partner, ok := t.partners[user]
	if !ok {
		return nil
	}
	key := makePairKey(user, partner)
	s := t.byPair[key]
	delete(t.partners, user)
	delete(t.partners, partner)
	delete(t.byPair, key)
	return s
}

// partner returns user's current partner, if any.
func (t *sessionTable) partner(user UserID) (UserID, bool) {
	p, ok := t.partners[user]
	return p, ok
}

// mutual reports whether a and b still point at each other. Timer callbacks
// use this to re-validate a session before closing it.
func (t *sessionTable) mutual(a, b UserID) bool {
	return t.partners[a] == b && t.partners[b] == a
}

// get returns the session for the pair {a, b}, if present.
func (t *sessionTable) get(a, b UserID) *Session {
	return t.byPair[makePairKey(a, b)]
}

func (t *sessionTable) count() int {
	return len(t.byPair)
}
