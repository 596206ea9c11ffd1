// Package chatlist is the live list of the current user's conversations.
package chatlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/format"
	"github.com/PaulBabatuyi/pairchat/internal/identity"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
	"github.com/PaulBabatuyi/pairchat/internal/session"
	"github.com/PaulBabatuyi/pairchat/internal/subscription"
)

const (
	// EmptyState is shown when the user has no conversations.
	EmptyState = "No chats yet. Start a new conversation!"
	// NoPreview stands in for a conversation without messages.
	NoPreview = "Start a conversation"
)

// Policy decides what happens to a conversation whose counterpart has no
// profile record.
type Policy int

const (
	// DropMissing omits the conversation.
	DropMissing Policy = iota
	// PlaceholderMissing keeps it under the placeholder name.
	PlaceholderMissing
)

// ParsePolicy reads "drop" or "placeholder".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "drop":
		return DropMissing, nil
	case "placeholder":
		return PlaceholderMissing, nil
	default:
		return DropMissing, fmt.Errorf("unknown missing-profile policy %q", s)
	}
}

func (p Policy) String() string {
	if p == PlaceholderMissing {
		return "placeholder"
	}
	return "drop"
}

// Entry is one rendered conversation.
type Entry struct {
	ConversationID string
	CounterpartID  string
	Name           string
	Initial        string
	Online         bool
	Preview        string
	Updated        time.Time
	UpdatedLabel   string
	Active         bool
	Hidden         bool
}

// Renderer draws the list. An empty slice means the empty state.
type Renderer interface {
	RenderConversations(entries []Entry)
}

// Activator opens a conversation in the thread and presence views.
type Activator interface {
	Activate(conversationID, counterpartID, counterpartName string) error
}

// Deps wires a View.
type Deps struct {
	Context   *session.Context
	Documents backend.Documents
	Profiles  backend.Profiles
	UI        Renderer
	Activator Activator
	Policy    Policy
	Now       func() time.Time
}

// View keeps the rendered entries of the latest snapshot.
type View struct {
	sess      *session.Context
	docs      backend.Documents
	profiles  backend.Profiles
	ui        Renderer
	activator Activator
	policy    Policy
	now       func() time.Time

	entries []Entry
	term    string
}

// New returns an idle view.
func New(d Deps) *View {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &View{
		sess:      d.Context,
		docs:      d.Documents,
		profiles:  d.Profiles,
		ui:        d.UI,
		activator: d.Activator,
		policy:    d.Policy,
		now:       d.Now,
	}
}

// Start subscribes to the current user's conversations, replacing any
// previous list subscription.
func (v *View) Start() error {
	uid := v.sess.UserID()
	if uid == "" {
		return errors.New("chatlist: no signed-in user")
	}
	v.entries = nil

	_, err := v.sess.List.Start(uid, func(ctx context.Context, h *subscription.Handle) (backend.Stop, error) {
		emit := subscription.Emit(h, v.apply)
		return v.docs.WatchConversations(ctx, uid, func(snap backend.Snapshot[*data.Conversation]) {
			// profile lookups happen off the loop, before the result is posted
			emit(v.build(ctx, uid, snap.Docs))
		})
	})
	if err != nil {
		return fmt.Errorf("watch conversations: %w", err)
	}
	return nil
}

// build resolves counterparts and sorts by last update, newest first.
func (v *View) build(ctx context.Context, uid string, convs []*data.Conversation) []Entry {
	entries := make([]Entry, 0, len(convs))
	for _, c := range convs {
		other := identity.Counterpart(c.Members, uid)
		if other == "" {
			continue
		}

		p, err := v.profiles.GetProfile(ctx, other)
		switch {
		case errors.Is(err, backend.ErrNotFound):
			if v.policy == DropMissing {
				log.Debug().Str("conversation_id", c.ID).Str("user_id", other).Msg("counterpart profile missing, dropped")
				continue
			}
			p = &data.Profile{ID: other}
		case err != nil:
			log.Warn().Err(err).Str("conversation_id", c.ID).Msg("load counterpart profile")
			continue
		}

		name := identity.DisplayName(p)
		preview := NoPreview
		if c.LastMessage != nil && c.LastMessage.Text != "" {
			preview = c.LastMessage.Text
		}
		entries = append(entries, Entry{
			ConversationID: c.ID,
			CounterpartID:  other,
			Name:           name,
			Initial:        identity.Initial(name),
			Online:         p.Online,
			Preview:        preview,
			Updated:        c.LastUpdated,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Updated, entries[j].Updated
		if !a.Equal(b) {
			// zero time sorts last
			return a.After(b)
		}
		return entries[i].ConversationID < entries[j].ConversationID
	})
	return entries
}

// apply replaces the rendered list with the entries of one emission.
func (v *View) apply(entries []Entry) {
	v.entries = entries
	v.render()
}

func (v *View) render() {
	now := v.now()
	active := v.sess.ActiveID()
	out := make([]Entry, len(v.entries))
	for i, e := range v.entries {
		e.UpdatedLabel = format.Relative(e.Updated, now)
		e.Active = e.ConversationID == active
		e.Hidden = !normalize.Matches(e.Name, v.term)
		out[i] = e
	}
	v.entries = out
	v.ui.RenderConversations(out)
}

// Filter hides entries whose name does not contain q. It does not query the
// backend.
func (v *View) Filter(q string) {
	v.term = normalize.SearchTerm(q)
	v.render()
}

// Refresh re-renders the current entries, e.g. after the active conversation
// changed.
func (v *View) Refresh() {
	v.render()
}

// Select opens the conversation with the given id.
func (v *View) Select(conversationID string) error {
	for _, e := range v.entries {
		if e.ConversationID == conversationID {
			return v.activator.Activate(e.ConversationID, e.CounterpartID, e.Name)
		}
	}
	return fmt.Errorf("chatlist: conversation %q not listed", conversationID)
}

// Entries returns the entries as last rendered.
func (v *View) Entries() []Entry {
	return append([]Entry(nil), v.entries...)
}

// Visible returns the entries the filter does not hide.
func (v *View) Visible() []Entry {
	var out []Entry
	for _, e := range v.entries {
		if !e.Hidden {
			out = append(out, e)
		}
	}
	return out
}

// Reset cancels the subscription and clears the list.
func (v *View) Reset() {
	v.sess.List.Cancel()
	v.entries = nil
	v.term = ""
}
