// Package picker lists the users the current user can start a conversation
// with and opens the conversation for the chosen one.
package picker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/PaulBabatuyi/pairchat/internal/apperr"
	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/identity"
	"github.com/PaulBabatuyi/pairchat/internal/session"
)

// User-facing messages.
const (
	NoCandidates   = "No other users to chat with"
	MsgLoadFailed  = "Failed to load users"
	MsgStartFailed = "Failed to start chat. Please try again."
)

// Candidate is one selectable user, keyed by ID.
type Candidate struct {
	ID      string
	Name    string
	Initial string
	Email   string
}

// Renderer draws the picker. An empty slice means NoCandidates.
type Renderer interface {
	RenderPicker(candidates []Candidate)
	ShowPickerError(msg string)
	ClosePicker()
	ShowError(msg string)
}

// Activator opens a conversation in the thread and presence views.
type Activator interface {
	Activate(conversationID, counterpartID, counterpartName string) error
}

// Picker is the new-conversation dialog.
type Picker struct {
	sess      *session.Context
	profiles  backend.Profiles
	docs      backend.Documents
	ui        Renderer
	activator Activator

	open       bool
	candidates []Candidate
}

// New returns a closed picker.
func New(sess *session.Context, profiles backend.Profiles, docs backend.Documents, ui Renderer, activator Activator) *Picker {
	return &Picker{sess: sess, profiles: profiles, docs: docs, ui: ui, activator: activator}
}

// Open reads the user directory once and renders everyone but the current
// user.
func (p *Picker) Open(ctx context.Context) error {
	uid := p.sess.UserID()
	if uid == "" {
		return errors.New("picker: no signed-in user")
	}
	p.open = true
	p.candidates = nil

	all, err := p.profiles.ListProfiles(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list profiles")
		p.ui.ShowPickerError(MsgLoadFailed)
		return apperr.Wrap(err, apperr.CodeBackend, MsgLoadFailed)
	}

	cands := make([]Candidate, 0, len(all))
	for _, prof := range all {
		if prof.ID == uid {
			continue
		}
		name := identity.DisplayName(prof)
		cands = append(cands, Candidate{
			ID:      prof.ID,
			Name:    name,
			Initial: identity.Initial(name),
			Email:   prof.Email,
		})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Name != cands[j].Name {
			return cands[i].Name < cands[j].Name
		}
		return cands[i].ID < cands[j].ID
	})

	p.candidates = cands
	p.ui.RenderPicker(cands)
	return nil
}

// IsOpen reports whether the picker is showing.
func (p *Picker) IsOpen() bool { return p.open }

// Candidates returns the listed users.
func (p *Picker) Candidates() []Candidate {
	return append([]Candidate(nil), p.candidates...)
}

// Pick gets or creates the conversation with userID, closes the picker and
// opens the conversation. The conversation id is derived from the pair, so a
// second pick of the same user finds the same document.
func (p *Picker) Pick(ctx context.Context, userID string) error {
	uid := p.sess.UserID()
	if uid == "" {
		return errors.New("picker: no signed-in user")
	}
	cand, ok := p.find(userID)
	if !ok {
		return fmt.Errorf("picker: user %q not listed", userID)
	}

	convID := identity.ConversationID(uid, userID)
	if err := p.getOrCreate(ctx, convID, uid, userID); err != nil {
		log.Error().Err(err).Str("conversation_id", convID).Msg("start chat")
		p.ui.ShowError(MsgStartFailed)
		return apperr.Wrap(err, apperr.CodeBackend, MsgStartFailed)
	}

	p.Close()
	return p.activator.Activate(convID, cand.ID, cand.Name)
}

func (p *Picker) getOrCreate(ctx context.Context, convID, uid, other string) error {
	_, err := p.docs.GetConversation(ctx, convID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return err
	}
	log.Info().Str("conversation_id", convID).Msg("creating conversation")
	return p.docs.CreateConversation(ctx, convID, []string{uid, other})
}

// Close hides the picker.
func (p *Picker) Close() {
	if !p.open {
		return
	}
	p.open = false
	p.candidates = nil
	p.ui.ClosePicker()
}

func (p *Picker) find(id string) (Candidate, bool) {
	for _, c := range p.candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}
