// Package presence shows whether the counterpart of the open conversation is
// online.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/format"
	"github.com/PaulBabatuyi/pairchat/internal/session"
	"github.com/PaulBabatuyi/pairchat/internal/subscription"
)

// OnlineText is shown for an online user.
const OnlineText = "Online"

// Status is the rendered presence line.
type Status struct {
	UserID string
	Online bool
	Text   string
}

// Renderer draws the presence line.
type Renderer interface {
	RenderPresence(st Status)
}

// Tracker follows one user's profile record.
type Tracker struct {
	sess     *session.Context
	profiles backend.Profiles
	ui       Renderer
	now      func() time.Time

	status Status
}

// New returns an idle tracker.
func New(sess *session.Context, profiles backend.Profiles, ui Renderer, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{sess: sess, profiles: profiles, ui: ui, now: now}
}

// Track replaces the presence subscription with one for userID.
func (t *Tracker) Track(userID string) error {
	t.status = Status{UserID: userID}
	_, err := t.sess.Presence.Start(userID, func(ctx context.Context, h *subscription.Handle) (backend.Stop, error) {
		return t.profiles.WatchProfile(ctx, userID, subscription.Emit(h, t.apply))
	})
	if err != nil {
		return fmt.Errorf("watch presence: %w", err)
	}
	return nil
}

// Status returns the last rendered status.
func (t *Tracker) Status() Status { return t.status }

// Reset cancels the subscription.
func (t *Tracker) Reset() {
	t.sess.Presence.Cancel()
	t.status = Status{}
}

func (t *Tracker) apply(p *data.Profile) {
	st := Status{UserID: t.status.UserID}
	switch {
	case p == nil:
		st.Text = format.LastSeen(time.Time{}, t.now())
	case p.Online:
		st.Online = true
		st.Text = OnlineText
	default:
		st.Text = format.LastSeen(p.LastSeenTime(), t.now())
	}
	t.status = st
	t.ui.RenderPresence(st)
}
