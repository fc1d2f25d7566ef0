package bot

import "sync"

// Special-contact conversation steps.
const (
	stepContactTarget = iota + 1
	stepContactMessage
)

type contactState struct {
	step     int
	targetID int64
}

// conversations tracks short-lived per-user dialog state: the gender picked
// while setting up a search, and the special-contact flow position. All of
// it is in-memory; a restart simply drops users back to the main menu.
type conversations struct {
	mu      sync.Mutex
	genders map[int64]string
	contact map[int64]contactState
}

func newConversations() *conversations {
	return &conversations{
		genders: make(map[int64]string),
		contact: make(map[int64]contactState),
	}
}

func (c *conversations) setGender(user int64, gender string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genders[user] = gender
}

// takeGender returns and consumes the gender the user picked, if any.
func (c *conversations) takeGender(user int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.genders[user]
	if ok {
		delete(c.genders, user)
	}
	return g, ok
}

func (c *conversations) startContact(user int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contact[user] = contactState{step: stepContactTarget}
}

func (c *conversations) contactStep(user int64) (contactState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.contact[user]
	return st, ok
}

func (c *conversations) setContactTarget(user, target int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contact[user] = contactState{step: stepContactMessage, targetID: target}
}

// clear drops every pending dialog state for the user.
func (c *conversations) clear(user int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.genders, user)
	delete(c.contact, user)
}
