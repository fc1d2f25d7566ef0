package engine

import "time"

// poolEntry is one user waiting for a partner.
type poolEntry struct {
	user     UserID
	joinedAt time.Time
}

// waitingPool is the set of users actively searching for a partner, kept in
// insertion order so matching is first-fit with FIFO fairness. It is not
// goroutine-safe; the engine serializes access under its own mutex.
type waitingPool struct {
	order   []poolEntry
	members map[UserID]struct{}
}

func newWaitingPool() *waitingPool {
	return &waitingPool{members: make(map[UserID]struct{})}
}

// add appends user to the pool. Adding a user that is already present is a
// no-op so insertion order is never disturbed.
func (p *waitingPool) add(user UserID, now time.Time) {
	if _, ok := p.members[user]; ok {
		return
	}
	p.members[user] = struct{}{}
	p.order = append(p.order, poolEntry{user: user, joinedAt: now})
}

// remove deletes user from the pool, reporting whether it was present.
func (p *waitingPool) remove(user UserID) bool {
	if _, ok := p.members[user]; !ok {
		return false
	}
	delete(p.members, user)
	for i, e := range p.order {
		if e.user == user {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

func (p *waitingPool) contains(user UserID) bool {
	_, ok := p.members[user]
	return ok
}

// joined returns the time user entered the pool, or the zero time if the
// user is not waiting.
func (p *waitingPool) joined(user UserID) time.Time {
	for _, e := range p.order {
		if e.user == user {
			return e.joinedAt
		}
	}
	return time.Time{}
}

// scan visits waiting users oldest-first until visit returns true. The
// visited user is not removed; the caller decides what to do with a hit.
func (p *waitingPool) scan(visit func(user UserID) bool) {
	for _, e := range p.order {
		if visit(e.user) {
			return
		}
	}
}

func (p *waitingPool) size() int {
	return len(p.order)
}
