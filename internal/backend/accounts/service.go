// Package accounts implements the managed authentication service on top of a
// credential store: bcrypt password hashes, signed session tokens, sign-in
// throttling and auth-state notifications.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
	"github.com/PaulBabatuyi/pairchat/internal/ratelimit"
)

// Credentials stores account records. Lookups return backend.ErrNotFound and
// duplicate emails backend.ErrDuplicateAccount.
type Credentials interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*data.Account, error)
	GetUserByEmail(ctx context.Context, email string) (*data.Account, error)
	GetUserByID(ctx context.Context, id string) (*data.Account, error)
}

// Options tunes the service.
type Options struct {
	// MinEntropyBits is the password strength required at sign-up.
	MinEntropyBits float64
	// Limiter throttles sign-in attempts per email; nil disables throttling.
	Limiter *ratelimit.LimiterStore
}

// Service is the client-side view of the accounts backend. It holds the
// current session and notifies listeners when it changes.
type Service struct {
	creds  Credentials
	tokens *auth.JWTManager
	opts   Options

	mu        sync.Mutex
	current   *backend.Session
	listeners map[int64]func(*backend.Session)
	nextID    int64
}

var _ backend.Accounts = (*Service)(nil)

// NewService wires the service.
func NewService(creds Credentials, tokens *auth.JWTManager, opts Options) *Service {
	if opts.MinEntropyBits <= 0 {
		opts.MinEntropyBits = auth.DefaultMinEntropyBits
	}
	return &Service{
		creds:     creds,
		tokens:    tokens,
		opts:      opts,
		listeners: map[int64]func(*backend.Session){},
	}
}

// CreateAccount registers email/password and signs the new account in.
func (s *Service) CreateAccount(ctx context.Context, email, password string) (string, error) {
	if err := auth.CheckStrength(password, s.opts.MinEntropyBits); err != nil {
		return "", fmt.Errorf("%w: %v", backend.ErrWeakPassword, err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	acc, err := s.creds.CreateUser(ctx, normalize.Email(email), hashed)
	if err != nil {
		return "", err
	}
	log.Info().Str("user_id", acc.ID).Msg("account created")

	sess, err := s.issue(acc)
	if err != nil {
		return "", err
	}
	s.publish(sess)
	return acc.ID, nil
}

// SignIn checks the credentials and publishes the new session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	email = normalize.Email(email)
	if s.opts.Limiter != nil && !s.opts.Limiter.Allow("email:"+email) {
		return nil, backend.ErrTooManyAttempts
	}

	acc, err := s.creds.GetUserByEmail(ctx, email)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, backend.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(acc.PasswordHash, password); err != nil {
		return nil, backend.ErrInvalidCredentials
	}
	if s.opts.Limiter != nil {
		s.opts.Limiter.Forget("email:" + email)
	}

	sess, err := s.issue(acc)
	if err != nil {
		return nil, err
	}
	s.publish(sess)
	return sess, nil
}

// Resume restores a session from a token issued earlier, as long as the
// account still exists.
func (s *Service) Resume(ctx context.Context, token string) (*backend.Session, error) {
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrSessionExpired, err)
	}
	acc, err := s.creds.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	sess := &backend.Session{
		UserID:    acc.ID,
		Email:     acc.Email,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	s.publish(sess)
	return sess, nil
}

// SignOut clears the session. Signing out while signed out does nothing.
func (s *Service) SignOut(ctx context.Context) error {
	s.mu.Lock()
	signedIn := s.current != nil
	s.mu.Unlock()
	if signedIn {
		s.publish(nil)
	}
	return nil
}

// Current returns the session or nil.
func (s *Service) Current() *backend.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnAuthStateChanged registers fn and calls it with the current session.
func (s *Service) OnAuthStateChanged(fn func(*backend.Session)) backend.Stop {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	current := s.current
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) issue(acc *data.Account) (*backend.Session, error) {
	token, expiresAt, err := s.tokens.GenerateToken(acc.ID, acc.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &backend.Session{
		UserID:    acc.ID,
		Email:     acc.Email,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) publish(sess *backend.Session) {
	s.mu.Lock()
	s.current = sess
	fns := make([]func(*backend.Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}
