// Package thread renders the message log of the open conversation.
package thread

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/format"
	"github.com/PaulBabatuyi/pairchat/internal/session"
	"github.com/PaulBabatuyi/pairchat/internal/subscription"
)

// Item is one rendered message.
type Item struct {
	ID        string
	Text      string
	SenderID  string
	Sent      bool // written by the current user
	TimeLabel string

	msg *data.Message
}

// Renderer draws the thread incrementally.
type Renderer interface {
	ClearThread()
	InsertMessage(index int, it Item)
	UpdateMessage(index int, it Item)
	RemoveMessage(index int)
	ScrollToBottom()
}

// View holds the rendered messages of one conversation.
type View struct {
	sess *session.Context
	docs backend.Documents
	ui   Renderer

	conversationID string
	items          []Item
}

// New returns an empty view.
func New(sess *session.Context, docs backend.Documents, ui Renderer) *View {
	return &View{sess: sess, docs: docs, ui: ui}
}

// Open switches the view to conversationID: the previous subscription is
// canceled, the rendered messages cleared, and the new log subscribed.
func (v *View) Open(conversationID string) error {
	v.conversationID = conversationID
	v.items = nil
	v.ui.ClearThread()

	_, err := v.sess.Thread.Start(conversationID, func(ctx context.Context, h *subscription.Handle) (backend.Stop, error) {
		return v.docs.WatchMessages(ctx, conversationID, subscription.Emit(h, v.apply))
	})
	if err != nil {
		return fmt.Errorf("watch messages: %w", err)
	}
	return nil
}

// ConversationID returns the conversation shown, or "".
func (v *View) ConversationID() string { return v.conversationID }

// Items returns the rendered messages in order.
func (v *View) Items() []Item {
	return append([]Item(nil), v.items...)
}

// Reset cancels the subscription and clears the view.
func (v *View) Reset() {
	v.sess.Thread.Cancel()
	v.conversationID = ""
	v.items = nil
	v.ui.ClearThread()
}

func (v *View) apply(snap backend.Snapshot[*data.Message]) {
	added := false
	for _, c := range snap.Changes {
		m := c.Doc
		if m.ConversationID != "" && m.ConversationID != v.conversationID {
			log.Warn().Str("conversation_id", m.ConversationID).Msg("message for another conversation ignored")
			continue
		}
		switch c.Kind {
		case backend.Added:
			if v.indexOf(m.ID) >= 0 {
				v.update(m)
				continue
			}
			v.insert(m)
			added = true
		case backend.Modified:
			v.update(m)
		case backend.Removed:
			if i := v.indexOf(m.ID); i >= 0 {
				v.items = append(v.items[:i], v.items[i+1:]...)
				v.ui.RemoveMessage(i)
			}
		}
	}
	if added {
		v.ui.ScrollToBottom()
	}
}

// insert places m by timestamp so late-arriving older messages still render
// in order.
func (v *View) insert(m *data.Message) {
	it := v.item(m)
	i := sort.Search(len(v.items), func(i int) bool {
		return m.Before(v.items[i].msg)
	})
	v.items = append(v.items, Item{})
	copy(v.items[i+1:], v.items[i:])
	v.items[i] = it
	v.ui.InsertMessage(i, it)
}

// update replaces m, moving it if its timestamp changed its position.
func (v *View) update(m *data.Message) {
	i := v.indexOf(m.ID)
	if i < 0 {
		v.insert(m)
		return
	}
	it := v.item(m)
	inPlace := (i == 0 || !m.Before(v.items[i-1].msg)) &&
		(i == len(v.items)-1 || m.Before(v.items[i+1].msg))
	if inPlace {
		v.items[i] = it
		v.ui.UpdateMessage(i, it)
		return
	}
	v.items = append(v.items[:i], v.items[i+1:]...)
	v.ui.RemoveMessage(i)
	v.insert(m)
}

func (v *View) indexOf(id string) int {
	for i, it := range v.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (v *View) item(m *data.Message) Item {
	return Item{
		ID:        m.ID,
		Text:      m.Text,
		SenderID:  m.SenderID,
		Sent:      m.SenderID == v.sess.UserID(),
		TimeLabel: format.MessageTime(m.Timestamp),
		msg:       m,
	}
}
