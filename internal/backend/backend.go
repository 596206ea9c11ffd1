// Package backend describes the hosted platform the chat client talks to:
// an accounts service, a profile key-value store and a document store with
// live queries. Implementations live in the sub-packages.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/data"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many sign-in attempts")
	ErrSessionExpired     = errors.New("session expired")
)

// Stop ends a live subscription. Implementations make it safe to call more
// than once.
type Stop func()

// Session is the signed-in state published by the accounts service.
type Session struct {
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Accounts is the managed authentication service.
type Accounts interface {
	// CreateAccount registers a credential and signs it in.
	CreateAccount(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// Resume restores a session from a previously issued token.
	Resume(ctx context.Context, token string) (*Session, error)
	SignOut(ctx context.Context) error
	// OnAuthStateChanged calls fn with the current session (nil when signed
	// out) right away and again on every change.
	OnAuthStateChanged(fn func(*Session)) Stop
}

// Profiles is the realtime key-value store holding user profiles.
type Profiles interface {
	GetProfile(ctx context.Context, id string) (*data.Profile, error)
	// PutProfile replaces the whole record.
	PutProfile(ctx context.Context, p *data.Profile) error
	// UpdatePresence merges the presence fields into an existing record.
	UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
	ListProfiles(ctx context.Context) ([]*data.Profile, error)
	// WatchProfile delivers the record on every change; nil means absent.
	WatchProfile(ctx context.Context, id string, fn func(*data.Profile)) (Stop, error)
}

// Documents is the document store holding conversations and their messages.
type Documents interface {
	GetConversation(ctx context.Context, id string) (*data.Conversation, error)
	// CreateConversation writes the conversation with backend-assigned
	// Created/LastUpdated. An existing Created is kept.
	CreateConversation(ctx context.Context, id string, members []string) error
	// UpdateSummary overwrites LastMessage and stamps LastUpdated.
	UpdateSummary(ctx context.Context, conversationID, text string) error
	// AppendMessage adds a message with a backend-assigned timestamp.
	AppendMessage(ctx context.Context, conversationID, senderID, text string) (*data.Message, error)
	// WatchConversations is a live query over conversations containing member.
	WatchConversations(ctx context.Context, member string, fn func(Snapshot[*data.Conversation])) (Stop, error)
	// WatchMessages is a live query over a conversation's messages ordered by
	// timestamp ascending.
	WatchMessages(ctx context.Context, conversationID string, fn func(Snapshot[*data.Message])) (Stop, error)
}

// AtomicSender is implemented by document stores that can append a message
// and update the conversation summary in one transaction.
type AtomicSender interface {
	SendMessage(ctx context.Context, conversationID, senderID, text string) (*data.Message, error)
}
