package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PaulBabatuyi/pairchat/internal/apperr"
	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/eventloop"
	"github.com/PaulBabatuyi/pairchat/internal/identity"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// User-facing messages.
const (
	MsgMissingCredentials = "Please enter both email and password"
	MsgMissingName        = "Please enter your name for signup"
	MsgProfileMissing     = "User data not found. Please contact support."
	msgAuthFailed         = "Authentication failed"
)

// Renderer toggles the top-level views and the shared error banner.
type Renderer interface {
	ShowLogin()
	ShowMain(displayName, initial string)
	ShowError(msg string)
	ClearError()
}

// Home is what runs while a user is signed in: Enter starts it for user,
// Leave clears whatever it rendered.
type Home interface {
	Enter(user *data.Profile) error
	Leave()
}

// Deps wires a Controller.
type Deps struct {
	Context  *Context
	Accounts backend.Accounts
	Profiles backend.Profiles
	Home     Home
	UI       Renderer
	Loop     eventloop.Poster
	Now      func() time.Time
	// Timeout bounds backend calls made from auth notifications.
	Timeout time.Duration
}

// Controller is the signed-out/signed-in state machine.
type Controller struct {
	sess     *Context
	accounts backend.Accounts
	profiles backend.Profiles
	home     Home
	ui       Renderer
	loop     eventloop.Poster
	now      func() time.Time
	timeout  time.Duration

	// authSeq numbers auth notifications so a stale one is skipped when a
	// newer one is already queued.
	authSeq  atomic.Int64
	stopAuth backend.Stop
}

// NewController returns a controller; call Start to begin reacting to auth
// state.
func NewController(d Deps) *Controller {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	return &Controller{
		sess:     d.Context,
		accounts: d.Accounts,
		profiles: d.Profiles,
		home:     d.Home,
		ui:       d.UI,
		loop:     d.Loop,
		now:      d.Now,
		timeout:  d.Timeout,
	}
}

// Context returns the session context the controller owns.
func (c *Controller) Context() *Context { return c.sess }

// Start subscribes to auth state. The first notification reports the state at
// registration time.
func (c *Controller) Start() {
	c.stopAuth = c.accounts.OnAuthStateChanged(func(s *backend.Session) {
		seq := c.authSeq.Add(1)
		c.loop.Post(func() {
			if c.authSeq.Load() != seq {
				return
			}
			c.handleAuth(s)
		})
	})
}

func (c *Controller) handleAuth(s *backend.Session) {
	if s == nil {
		c.teardown()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	// a new session can arrive without a sign-out in between; nothing of the
	// previous user's may survive it
	if prev := c.sess.CurrentUser(); prev != nil && prev.ID != s.UserID {
		c.markOffline(ctx)
	}
	c.leave()

	p, err := c.profiles.GetProfile(ctx, s.UserID)
	if err != nil {
		var appErr *apperr.AppError
		if errors.Is(err, backend.ErrNotFound) {
			appErr = apperr.NewInconsistencyError(MsgProfileMissing, err)
			log.Error().Str("user_id", s.UserID).Msg("signed in without a profile record")
		} else {
			appErr = apperr.NewBackendError(msgAuthFailed, err)
			log.Error().Err(err).Str("user_id", s.UserID).Msg("load profile")
		}
		c.ui.ShowError(appErr.Message)
		if err := c.accounts.SignOut(ctx); err != nil {
			log.Error().Err(err).Msg("forced sign out")
		}
		return
	}

	p.ID = s.UserID
	if p.Email == "" {
		p.Email = s.Email
	}
	now := c.now()
	p.Online = true
	p.LastSeen = now.UnixMilli()
	c.sess.SetUser(p)

	if err := c.profiles.UpdatePresence(ctx, p.ID, true, now); err != nil {
		log.Warn().Err(err).Str("user_id", p.ID).Msg("mark online")
	}

	name := identity.DisplayName(p)
	c.ui.ClearError()
	c.ui.ShowMain(name, identity.Initial(name))
	log.Info().Str("user_id", p.ID).Msg("signed in")

	if err := c.home.Enter(p); err != nil {
		c.ui.ShowError(apperr.Message(err))
	}
}

// teardown ends the session and shows the login view.
func (c *Controller) teardown() {
	c.leave()
	c.ui.ShowLogin()
}

// leave cancels subscriptions, forgets the user and the open conversation and
// clears the views.
func (c *Controller) leave() {
	c.sess.CancelAll()
	c.sess.clear()
	c.home.Leave()
}

// SignUp validates the form, creates the account and writes the initial
// profile. The account and the profile are separate writes; if the second one
// fails the account exists without a profile and the next sign-in is refused.
func (c *Controller) SignUp(ctx context.Context, name, email, password string) error {
	name = normalize.Name(name)
	if email == "" || password == "" {
		return c.reject(apperr.NewValidationError("email", MsgMissingCredentials))
	}
	if name == "" {
		return c.reject(apperr.NewValidationError("name", MsgMissingName))
	}
	c.ui.ClearError()

	id, err := c.accounts.CreateAccount(ctx, email, password)
	if err != nil {
		log.Warn().Err(err).Msg("create account")
		return c.reject(apperr.NewBackendError(msgAuthFailed, err))
	}

	err = c.profiles.PutProfile(ctx, &data.Profile{
		ID:       id,
		Name:     name,
		Email:    normalize.Email(email),
		LastSeen: c.now().UnixMilli(),
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", id).Msg("write profile after account creation")
		return c.reject(apperr.NewBackendError(msgAuthFailed, err))
	}
	return nil
}

// SignIn validates the form and authenticates.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return c.reject(apperr.NewValidationError("email", MsgMissingCredentials))
	}
	c.ui.ClearError()

	if _, err := c.accounts.SignIn(ctx, email, password); err != nil {
		log.Warn().Err(err).Msg("sign in")
		return c.reject(apperr.NewBackendError(msgAuthFailed, err))
	}
	return nil
}

// Resume restores a cached session token.
func (c *Controller) Resume(ctx context.Context, token string) error {
	if _, err := c.accounts.Resume(ctx, token); err != nil {
		return c.reject(apperr.NewBackendError(msgAuthFailed, err))
	}
	return nil
}

// SignOut marks the user offline, tears the session down right away and
// signs out of the backend. Emissions already queued for the old session are
// dropped.
func (c *Controller) SignOut(ctx context.Context) error {
	c.markOffline(ctx)
	c.teardown()
	if err := c.accounts.SignOut(ctx); err != nil {
		return c.reject(apperr.NewBackendError("Sign out failed", err))
	}
	return nil
}

// Foreground marks the current user online again.
func (c *Controller) Foreground(ctx context.Context) {
	p := c.sess.CurrentUser()
	if p == nil {
		return
	}
	now := c.now()
	if err := c.profiles.UpdatePresence(ctx, p.ID, true, now); err != nil {
		log.Warn().Err(err).Str("user_id", p.ID).Msg("mark online")
		return
	}
	p.Online = true
	p.LastSeen = now.UnixMilli()
}

// Close is app teardown: mark offline, cancel everything, stop listening for
// auth changes. The backend session is kept.
func (c *Controller) Close(ctx context.Context) {
	c.markOffline(ctx)
	c.sess.CancelAll()
	if c.stopAuth != nil {
		c.stopAuth()
		c.stopAuth = nil
	}
}

func (c *Controller) markOffline(ctx context.Context) {
	p := c.sess.CurrentUser()
	if p == nil {
		return
	}
	if err := c.profiles.UpdatePresence(ctx, p.ID, false, c.now()); err != nil {
		log.Warn().Err(err).Str("user_id", p.ID).Msg("mark offline")
	}
}

func (c *Controller) reject(err *apperr.AppError) error {
	c.ui.ShowError(err.Message)
	return err
}
