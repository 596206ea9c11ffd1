// Package session owns the signed-in state of the client: who the current
// user is, which conversation is open, and the live subscriptions that hang
// off them.
package session

import (
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/eventloop"
	"github.com/PaulBabatuyi/pairchat/internal/subscription"
)

// Slot names.
const (
	SlotList     = "list"
	SlotThread   = "thread"
	SlotPresence = "presence"
)

// Active is the conversation currently open in the thread view.
type Active struct {
	ConversationID  string
	CounterpartID   string
	CounterpartName string
}

// Context is the state shared by the views. The Controller owns it; views
// borrow it. It is only touched from the event loop.
type Context struct {
	user   *data.Profile
	active *Active

	List     *subscription.Slot
	Thread   *subscription.Slot
	Presence *subscription.Slot
}

// NewContext returns an empty context whose slots deliver onto loop.
func NewContext(loop eventloop.Poster) *Context {
	return &Context{
		List:     subscription.NewSlot(SlotList, loop),
		Thread:   subscription.NewSlot(SlotThread, loop),
		Presence: subscription.NewSlot(SlotPresence, loop),
	}
}

// CurrentUser returns the signed-in profile or nil.
func (c *Context) CurrentUser() *data.Profile { return c.user }

// UserID returns the signed-in user's id or "".
func (c *Context) UserID() string {
	if c.user == nil {
		return ""
	}
	return c.user.ID
}

// Active returns the open conversation or nil.
func (c *Context) Active() *Active { return c.active }

// ActiveID returns the open conversation id or "".
func (c *Context) ActiveID() string {
	if c.active == nil {
		return ""
	}
	return c.active.ConversationID
}

// Activate records the open conversation.
func (c *Context) Activate(a Active) {
	c.active = &a
}

// Deactivate forgets the open conversation.
func (c *Context) Deactivate() { c.active = nil }

// CancelAll cancels every slot. It is idempotent.
func (c *Context) CancelAll() {
	c.List.Cancel()
	c.Thread.Cancel()
	c.Presence.Cancel()
}

// Subscriptions reports the number of live handles across all slots.
func (c *Context) Subscriptions() int {
	return c.List.Active() + c.Thread.Active() + c.Presence.Active()
}

// SetUser records the signed-in profile. The Controller calls it after a
// sign-in; tests use it to start from a signed-in state.
func (c *Context) SetUser(p *data.Profile) { c.user = p }

func (c *Context) clear() {
	c.user = nil
	c.active = nil
}
