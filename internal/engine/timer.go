package engine

import "time"

// timerSet manages at most one live delayed action per key. Arming a key
// replaces (cancels) any previous timer under it. Every armed timer carries
// a generation number; a fired callback must claim its generation under the
// engine mutex before acting, which discards callbacks for timers that were
// cancelled or replaced after scheduling but before firing.
//
// timerSet itself is not goroutine-safe: arm, cancel and claim must all be
// called while holding the engine mutex. The time.AfterFunc callback runs on
// its own goroutine and acquires that mutex before calling claim.
type timerSet struct {
	nextGen uint64
	live    map[string]*keyedTimer
}

type keyedTimer struct {
	gen   uint64
	timer *time.Timer
}

func newTimerSet() *timerSet {
	return &timerSet{live: make(map[string]*keyedTimer)}
}

// arm schedules fire to run after d, replacing any existing timer for key.
// fire receives the generation it must pass to claim.
func (ts *timerSet) arm(key string, d time.Duration, fire func(gen uint64)) {
	if old, ok := ts.live[key]; ok {
		old.timer.Stop()
	}
	ts.nextGen++
	gen := ts.nextGen
	ts.live[key] = &keyedTimer{
		gen:   gen,
		timer: time.AfterFunc(d, func() { fire(gen) }),
	}
}

// cancel stops and forgets the timer for key, reporting whether one was
// live. Cancelling an absent key is a no-op. Stop may race with an
// in-flight callback; the generation check in claim makes that harmless.
func (ts *timerSet) cancel(key string) bool {
	kt, ok := ts.live[key]
	if !ok {
		return false
	}
	kt.timer.Stop()
	delete(ts.live, key)
	return true
}

// claim validates that the firing callback still owns the timer slot for
// key (same generation, not cancelled or replaced) and consumes it. A false
// return means the callback is stale and must do nothing.
func (ts *timerSet) claim(key string, gen uint64) bool {
	kt, ok := ts.live[key]
	if !ok || kt.gen != gen {
		return false
	}
	delete(ts.live, key)
	return true
}

// armed reports whether a live timer exists for key.
func (ts *timerSet) armed(key string) bool {
	_, ok := ts.live[key]
	return ok
}

// size returns the number of live timers.
func (ts *timerSet) size() int {
	return len(ts.live)
}
