// Package engine implements the anonymous pairing core: a mutex-guarded
// matching queue that pairs compatible strangers, keeps exactly one active
// partner link per user, and reclaims idle searches and idle conversations
// through cancellable keyed timers.
//
// All state mutations (join, match, cancel, end, timer fire, relay) are
// serialized through a single mutex. Notification delivery happens outside
// the lock and is never transactional with a state change: once a mutation
// commits, a failed send cannot roll it back.
package engine

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nashenas/anonbot/internal/metrics"
)

// Default timing constants, matching the production bot.
const (
	DefaultSearchTimeout    = 300 * time.Second
	DefaultIdleTimeout      = 300 * time.Second
	DefaultThrottleInterval = 1200 * time.Millisecond
)

// Config holds the engine's timing knobs. Zero values fall back to the
// defaults above.
type Config struct {
	SearchTimeout    time.Duration // how long a search waits before giving up
	IdleTimeout      time.Duration // how long a silent session survives
	ThrottleInterval time.Duration // minimum gap between relayed messages
}

func (c Config) withDefaults() Config {
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ThrottleInterval <= 0 {
		c.ThrottleInterval = DefaultThrottleInterval
	}
	return c
}

// Engine owns the waiting pool, session table, profile map and timers. It
// is safe for concurrent use by any number of goroutines.
type Engine struct {
	cfg      Config
	notifier Notifier
	deliver  Deliverer
	audit    AuditSink

	mu           sync.Mutex
	profiles     map[UserID]Profile
	pool         *waitingPool
	sessions     *sessionTable
	searchTimers *timerSet // keyed by user
	idleTimers   *timerSet // keyed by session pair
	lastMessage  map[UserID]time.Time

	now func() time.Time // injectable for tests
}

// New builds an engine. notifier and deliver are required; a nil audit sink
// disables mirroring.
func New(cfg Config, notifier Notifier, deliver Deliverer, audit AuditSink) *Engine {
	if audit == nil {
		audit = NopAuditSink{}
	}
	return &Engine{
		cfg:          cfg.withDefaults(),
		notifier:     notifier,
		deliver:      deliver,
		audit:        audit,
		profiles:     make(map[UserID]Profile),
		pool:         newWaitingPool(),
		sessions:     newSessionTable(),
		searchTimers: newTimerSet(),
		idleTimers:   newTimerSet(),
		lastMessage:  make(map[UserID]time.Time),
		now:          time.Now,
	}
}

func searchKey(user UserID) string {
	return fmt.Sprintf("search:%d", user)
}

func idleKey(key pairKey) string {
	return "idle:" + string(key)
}

// RequestSearch records the user's profile and either pairs them with the
// longest-waiting compatible candidate or parks them in the waiting pool
// with a search timer. If the user already holds a session the call is an
// idempotent no-op that leaves the session untouched.
func (e *Engine) RequestSearch(user UserID, gender, pref string) {
	e.mu.Lock()

	if _, ok := e.sessions.partner(user); ok {
		e.mu.Unlock()
		e.notifier.AlreadyChatting(user)
		return
	}

	e.profiles[user] = Profile{Gender: gender, Pref: pref}

	// Purge stale state from an abandoned search before re-entering.
	e.pool.remove(user)
	e.searchTimers.cancel(searchKey(user))

	if other, ok := e.findCandidate(user); ok {
		e.matchLocked(user, other)
		return // matchLocked released the lock
	}

	now := e.now()
	e.pool.add(user, now)
	e.searchTimers.arm(searchKey(user), e.cfg.SearchTimeout, func(gen uint64) {
		e.onSearchTimeout(user, gen)
	})
	metrics.WaitingPoolSize.Set(float64(e.pool.size()))
	e.mu.Unlock()

	e.notifier.Searching(user)
}

// findCandidate scans the pool oldest-first for the first mutually
// compatible user. First-fit, not best-fit: ties go to whoever has been
// waiting longest. Caller holds the lock.
func (e *Engine) findCandidate(user UserID) (UserID, bool) {
	self := e.profiles[user]
	var found UserID
	ok := false
	e.pool.scan(func(other UserID) bool {
		if other == user {
			return false
		}
		if canMatch(self, e.profiles[other]) {
			found, ok = other, true
			return true
		}
		return false
	})
	return found, ok
}

// matchLocked installs a session for {user, other}, pulling other out of
// the pool and cancelling their search timer. It releases the lock before
// notifying. Caller holds the lock.
func (e *Engine) matchLocked(user, other UserID) {
	now := e.now()
	waited := now.Sub(e.pool.joined(other))

	e.pool.remove(other)
	e.searchTimers.cancel(searchKey(other))

	s := e.sessions.install(user, other, now)
	key := makePairKey(user, other)
	e.idleTimers.arm(idleKey(key), e.cfg.IdleTimeout, func(gen uint64) {
		e.onIdleTimeout(user, other, gen)
	})

	metrics.WaitingPoolSize.Set(float64(e.pool.size()))
	metrics.ActiveSessions.Set(float64(e.sessions.count()))
	metrics.TimeToMatch.Observe(waited.Seconds())
	e.mu.Unlock()

	log.Printf("[engine] matched session=%s a=%d b=%d waited=%s",
		s.ID, user, other, waited.Round(time.Millisecond))

	e.notifier.Matched(user)
	e.notifier.Matched(other)
}

// CancelSearch removes the user from the waiting pool and cancels their
// search timer. Returns whether anything was actually cancelled, so the
// caller can answer "nothing to cancel" honestly. Safe to call repeatedly.
func (e *Engine) CancelSearch(user UserID) bool {
	e.mu.Lock()
	removed := e.pool.remove(user)
	cancelled := e.searchTimers.cancel(searchKey(user))
	metrics.WaitingPoolSize.Set(float64(e.pool.size()))
	e.mu.Unlock()
	return removed || cancelled
}

// EndSession closes the user's session, if any, removing both directions
// together with the inactivity timer. The ending user is told reason; the
// partner gets a generic disconnect notice. Returns whether a session
// existed.
func (e *Engine) EndSession(user UserID, reason EndReason) bool {
	e.mu.Lock()
	s := e.sessions.remove(user)
	if s == nil {
		e.mu.Unlock()
		return false
	}
	partner := s.Partner(user)
	e.idleTimers.cancel(idleKey(makePairKey(user, partner)))
	metrics.ActiveSessions.Set(float64(e.sessions.count()))
	e.mu.Unlock()

	log.Printf("[engine] session ended session=%s by=%d reason=%s", s.ID, user, reason)

	e.notifier.ChatEnded(user, reason)
	e.notifier.PartnerDisconnected(partner)
	return true
}

// NextPartner ends the current session (the partner is notified, not
// re-queued) and re-enters the search with the user's stored profile. If no
// profile exists yet the caller must run the setup prompts first; this
// returns false in that case and does nothing.
func (e *Engine) NextPartner(user UserID) bool {
	e.mu.Lock()
	p, ok := e.profiles[user]
	e.mu.Unlock()
	if !ok {
		return false
	}

	e.EndSession(user, ReasonNext)
	e.RequestSearch(user, p.Gender, p.Pref)
	return true
}

// HasProfile reports whether the user has completed the setup prompts at
// least once.
func (e *Engine) HasProfile(user UserID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.profiles[user]
	return ok
}

// PartnerOf returns the user's active partner, if any.
func (e *Engine) PartnerOf(user UserID) (UserID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions.partner(user)
}

// Searching reports whether the user is currently in the waiting pool.
func (e *Engine) Searching(user UserID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.contains(user)
}

// onSearchTimeout fires when a search window elapses. The generation claim
// discards callbacks whose timer was cancelled or replaced after
// scheduling: a session formed between "timer scheduled" and "timer fires"
// always wins.
func (e *Engine) onSearchTimeout(user UserID, gen uint64) {
	e.mu.Lock()
	if !e.searchTimers.claim(searchKey(user), gen) {
		e.mu.Unlock()
		return
	}
	if !e.pool.contains(user) {
		// Matched or cancelled while the callback was in flight.
		e.mu.Unlock()
		return
	}
	e.pool.remove(user)
	metrics.WaitingPoolSize.Set(float64(e.pool.size()))
	metrics.SearchTimeouts.Inc()
	e.mu.Unlock()

	log.Printf("[engine] search timed out user=%d", user)
	e.notifier.SearchTimedOut(user)
}

// onIdleTimeout fires when a session sees no relayed traffic for the idle
// window. It re-validates that both directions still point at each other
// before closing, guarding against an explicit end racing the timer.
func (e *Engine) onIdleTimeout(a, b UserID, gen uint64) {
	e.mu.Lock()
	if !e.idleTimers.claim(idleKey(makePairKey(a, b)), gen) {
		e.mu.Unlock()
		return
	}
	if !e.sessions.mutual(a, b) {
		e.mu.Unlock()
		return
	}
	s := e.sessions.remove(a)
	metrics.ActiveSessions.Set(float64(e.sessions.count()))
	metrics.IdleTimeouts.Inc()
	e.mu.Unlock()

	log.Printf("[engine] idle timeout session=%s a=%d b=%d", s.ID, a, b)

	e.notifier.ChatEnded(a, ReasonInactivity)
	e.notifier.ChatEnded(b, ReasonInactivity)
}
