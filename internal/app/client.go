// Package app wires the session controller and the views into one chat
// client. Everything in it runs on the event loop.
package app

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/chatlist"
	"github.com/PaulBabatuyi/pairchat/internal/composer"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/eventloop"
	"github.com/PaulBabatuyi/pairchat/internal/identity"
	"github.com/PaulBabatuyi/pairchat/internal/picker"
	"github.com/PaulBabatuyi/pairchat/internal/presence"
	"github.com/PaulBabatuyi/pairchat/internal/session"
	"github.com/PaulBabatuyi/pairchat/internal/thread"
)

// UI is everything the client draws.
type UI interface {
	session.Renderer
	chatlist.Renderer
	thread.Renderer
	presence.Renderer
	picker.Renderer
	// ShowConversation sets the header of the open conversation.
	ShowConversation(name, initial string)
}

// Backends are the hosted services the client talks to.
type Backends struct {
	Accounts  backend.Accounts
	Profiles  backend.Profiles
	Documents backend.Documents
}

// Options tunes the client.
type Options struct {
	Policy  chatlist.Policy
	Now     func() time.Time
	Timeout time.Duration
}

// Client is the signed-in/signed-out chat client.
type Client struct {
	sess     *session.Context
	ui       UI
	ctrl     *session.Controller
	list     *chatlist.View
	thread   *thread.View
	presence *presence.Tracker
	composer *composer.Composer
	picker   *picker.Picker
}

// New builds a client whose emissions are delivered on loop. Call Start to
// begin following auth state.
func New(loop eventloop.Poster, b Backends, ui UI, opts Options) *Client {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	sess := session.NewContext(loop)
	c := &Client{sess: sess, ui: ui}

	c.ctrl = session.NewController(session.Deps{
		Context:  sess,
		Accounts: b.Accounts,
		Profiles: b.Profiles,
		Home:     c,
		UI:       ui,
		Loop:     loop,
		Now:      opts.Now,
		Timeout:  opts.Timeout,
	})
	c.list = chatlist.New(chatlist.Deps{
		Context:   sess,
		Documents: b.Documents,
		Profiles:  b.Profiles,
		UI:        ui,
		Activator: c,
		Policy:    opts.Policy,
		Now:       opts.Now,
	})
	c.thread = thread.New(sess, b.Documents, ui)
	c.presence = presence.New(sess, b.Profiles, ui, opts.Now)
	c.composer = composer.New(sess, b.Documents, ui)
	c.picker = picker.New(sess, b.Profiles, b.Documents, ui, c)
	return c
}

// Start subscribes to auth state.
func (c *Client) Start() { c.ctrl.Start() }

// Close marks the user offline and cancels every subscription.
func (c *Client) Close(ctx context.Context) { c.ctrl.Close(ctx) }

func (c *Client) Session() *session.Context       { return c.sess }
func (c *Client) Controller() *session.Controller { return c.ctrl }
func (c *Client) List() *chatlist.View            { return c.list }
func (c *Client) Thread() *thread.View            { return c.thread }
func (c *Client) Presence() *presence.Tracker     { return c.presence }
func (c *Client) Composer() *composer.Composer    { return c.composer }
func (c *Client) Picker() *picker.Picker          { return c.picker }

// Enter starts the conversation list for a freshly signed-in user.
func (c *Client) Enter(user *data.Profile) error {
	return c.list.Start()
}

// Leave clears every view after sign-out.
func (c *Client) Leave() {
	c.picker.Close()
	c.thread.Reset()
	c.presence.Reset()
	c.list.Reset()
}

// Activate opens a conversation: thread, presence, header and the active
// marker in the list. The conversation becomes active only once both
// subscriptions are running.
func (c *Client) Activate(conversationID, counterpartID, counterpartName string) error {
	if err := c.thread.Open(conversationID); err != nil {
		c.deactivate()
		return err
	}
	if err := c.presence.Track(counterpartID); err != nil {
		c.deactivate()
		return err
	}
	c.sess.Activate(session.Active{
		ConversationID:  conversationID,
		CounterpartID:   counterpartID,
		CounterpartName: counterpartName,
	})
	c.ui.ShowConversation(counterpartName, identity.Initial(counterpartName))
	c.list.Refresh()
	return nil
}

// deactivate drops a half-opened conversation so nothing is sent into it.
func (c *Client) deactivate() {
	c.thread.Reset()
	c.presence.Reset()
	c.sess.Deactivate()
	c.list.Refresh()
}
