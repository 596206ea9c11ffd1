// Package memory is an in-process backend: profile store, document store and
// credential store with live subscriptions. The terminal client uses it in
// offline mode and the tests use it everywhere.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// Op names a store operation for fault injection.
type Op string

const (
	OpGetProfile         Op = "get_profile"
	OpPutProfile         Op = "put_profile"
	OpUpdatePresence     Op = "update_presence"
	OpListProfiles       Op = "list_profiles"
	OpGetConversation    Op = "get_conversation"
	OpCreateConversation Op = "create_conversation"
	OpUpdateSummary      Op = "update_summary"
	OpAppendMessage      Op = "append_message"
	OpCreateUser         Op = "create_user"
	OpWatchProfile       Op = "watch_profile"
	OpWatchMessages      Op = "watch_messages"
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the source of server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPendingWrites makes AppendMessage publish the message first without a
// timestamp and then again once the timestamp is assigned, the way hosted
// stores report latency-compensated writes.
func WithPendingWrites() Option {
	return func(s *Store) { s.pendingWrites = true }
}

// Store implements backend.Profiles, backend.Documents and the accounts
// credential store.
type Store struct {
	// mu guards the data. Listener calls run outside mu, in commit order,
	// using tickets issued under mu. Listeners must not write to the store
	// synchronously.
	mu          sync.Mutex
	deliverMu   sync.Mutex
	deliverCond *sync.Cond
	issued      uint64
	delivered   uint64

	now           func() time.Time
	lastStamp     time.Time
	pendingWrites bool

	profiles      map[string]*data.Profile
	conversations map[string]*data.Conversation
	messages      map[string][]*data.Message
	accounts      map[string]*data.Account
	emails        map[string]string

	nextWatcher     int64
	profileWatchers map[int64]*profileWatcher
	convWatchers    map[int64]*convWatcher
	msgWatchers     map[int64]*msgWatcher

	failures map[Op]error
}

type profileWatcher struct {
	id string
	fn func(*data.Profile)
}

type convWatcher struct {
	member string
	prev   []*data.Conversation
	fn     func(backend.Snapshot[*data.Conversation])
}

type msgWatcher struct {
	conversationID string
	prev           []*data.Message
	fn             func(backend.Snapshot[*data.Message])
}

var (
	_ backend.Profiles  = (*Store)(nil)
	_ backend.Documents = (*Store)(nil)
)

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:             time.Now,
		profiles:        map[string]*data.Profile{},
		conversations:   map[string]*data.Conversation{},
		messages:        map[string][]*data.Message{},
		accounts:        map[string]*data.Account{},
		emails:          map[string]string{},
		profileWatchers: map[int64]*profileWatcher{},
		convWatchers:    map[int64]*convWatcher{},
		msgWatchers:     map[int64]*msgWatcher{},
		failures:        map[Op]error{},
	}
	s.deliverCond = sync.NewCond(&s.deliverMu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next call of op return err.
func (s *Store) FailNext(op Op, err error) {
	s.mu.Lock()
	s.failures[op] = err
	s.mu.Unlock()
}

// Watchers reports the number of live subscriptions of every kind.
func (s *Store) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profileWatchers) + len(s.convWatchers) + len(s.msgWatchers)
}

// MessageWatchers reports the number of live message subscriptions.
func (s *Store) MessageWatchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgWatchers)
}

// Messages returns a copy of a conversation's message log in order.
func (s *Store) Messages(conversationID string) []*data.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.sortedMessages(conversationID))
}

// failure pops an injected error. Callers hold mu.
func (s *Store) failure(op Op) error {
	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

// stamp returns a strictly increasing server timestamp. Callers hold mu.
func (s *Store) stamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Millisecond)
	}
	s.lastStamp = t
	return t
}

// commit releases mu and runs the collected notifications after those of
// every earlier commit.
func (s *Store) commit(notes []func()) {
	if len(notes) == 0 {
		s.mu.Unlock()
		return
	}
	s.issued++
	ticket := s.issued
	s.mu.Unlock()

	s.deliverMu.Lock()
	for s.delivered != ticket-1 {
		s.deliverCond.Wait()
	}
	s.deliverMu.Unlock()

	for _, n := range notes {
		n()
	}

	s.deliverMu.Lock()
	s.delivered = ticket
	s.deliverCond.Broadcast()
	s.deliverMu.Unlock()
}

func (s *Store) watch(ctx context.Context, remove func()) backend.Stop {
	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			remove()
			s.mu.Unlock()
		})
	}
	context.AfterFunc(ctx, stop)
	return stop
}

// ---- profiles ----

func (s *Store) GetProfile(ctx context.Context, id string) (*data.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpGetProfile); err != nil {
		return nil, err
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) PutProfile(ctx context.Context, p *data.Profile) error {
	s.mu.Lock()
	if err := s.failure(OpPutProfile); err != nil {
		s.mu.Unlock()
		return err
	}
	cp := *p
	s.profiles[p.ID] = &cp
	s.commit(s.profileNotes(p.ID))
	return nil
}

func (s *Store) UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	s.mu.Lock()
	if err := s.failure(OpUpdatePresence); err != nil {
		s.mu.Unlock()
		return err
	}
	p, ok := s.profiles[id]
	if !ok {
		// merge-update on an absent key creates it
		p = &data.Profile{ID: id}
		s.profiles[id] = p
	}
	p.Online = online
	p.LastSeen = lastSeen.UnixMilli()
	s.commit(s.profileNotes(id))
	return nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]*data.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpListProfiles); err != nil {
		return nil, err
	}
	out := make([]*data.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) WatchProfile(ctx context.Context, id string, fn func(*data.Profile)) (backend.Stop, error) {
	s.mu.Lock()
	if err := s.failure(OpWatchProfile); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.nextWatcher++
	wid := s.nextWatcher
	w := &profileWatcher{id: id, fn: fn}
	s.profileWatchers[wid] = w
	initial := s.profileNote(w)
	s.commit([]func(){initial})

	return s.watch(ctx, func() { delete(s.profileWatchers, wid) }), nil
}

func (s *Store) profileNote(w *profileWatcher) func() {
	var snap *data.Profile
	if p, ok := s.profiles[w.id]; ok {
		cp := *p
		snap = &cp
	}
	return func() { w.fn(snap) }
}

func (s *Store) profileNotes(id string) []func() {
	var notes []func()
	for _, w := range s.profileWatchers {
		if w.id == id {
			notes = append(notes, s.profileNote(w))
		}
	}
	return notes
}

// ---- documents ----

func (s *Store) GetConversation(ctx context.Context, id string) (*data.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpGetConversation); err != nil {
		return nil, err
	}
	c, ok := s.conversations[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return cloneConversation(c), nil
}

func (s *Store) CreateConversation(ctx context.Context, id string, members []string) error {
	s.mu.Lock()
	if err := s.failure(OpCreateConversation); err != nil {
		s.mu.Unlock()
		return err
	}
	now := s.stamp()
	c, ok := s.conversations[id]
	if !ok {
		c = &data.Conversation{ID: id, Created: now, LastUpdated: now}
		s.conversations[id] = c
	}
	c.Members = append([]string(nil), members...)
	s.commit(s.conversationNotes())
	return nil
}

func (s *Store) UpdateSummary(ctx context.Context, conversationID, text string) error {
	s.mu.Lock()
	if err := s.failure(OpUpdateSummary); err != nil {
		s.mu.Unlock()
		return err
	}
	c, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return backend.ErrNotFound
	}
	c.LastMessage = &data.LastMessage{Text: text}
	c.LastUpdated = s.stamp()
	s.commit(s.conversationNotes())
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, conversationID, senderID, text string) (*data.Message, error) {
	s.mu.Lock()
	if err := s.failure(OpAppendMessage); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	m := &data.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Text:           text,
		SenderID:       senderID,
	}
	s.messages[conversationID] = append(s.messages[conversationID], m)

	if s.pendingWrites {
		s.commit(s.messageNotes(conversationID))
		s.mu.Lock()
	}
	m.Timestamp = s.stamp()
	out := *m
	s.commit(s.messageNotes(conversationID))
	return &out, nil
}

func (s *Store) WatchConversations(ctx context.Context, member string, fn func(backend.Snapshot[*data.Conversation])) (backend.Stop, error) {
	s.mu.Lock()
	s.nextWatcher++
	wid := s.nextWatcher
	w := &convWatcher{member: member, fn: fn}
	s.convWatchers[wid] = w
	s.commit([]func(){s.conversationNote(w)})

	return s.watch(ctx, func() { delete(s.convWatchers, wid) }), nil
}

func (s *Store) WatchMessages(ctx context.Context, conversationID string, fn func(backend.Snapshot[*data.Message])) (backend.Stop, error) {
	s.mu.Lock()
	if err := s.failure(OpWatchMessages); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.nextWatcher++
	wid := s.nextWatcher
	w := &msgWatcher{conversationID: conversationID, fn: fn}
	s.msgWatchers[wid] = w
	s.commit([]func(){s.messageNote(w)})

	return s.watch(ctx, func() { delete(s.msgWatchers, wid) }), nil
}

// conversationNote computes the next snapshot for w. Callers hold mu.
func (s *Store) conversationNote(w *convWatcher) func() {
	var next []*data.Conversation
	for _, c := range s.conversations {
		for _, m := range c.Members {
			if m == w.member {
				next = append(next, cloneConversation(c))
				break
			}
		}
	}
	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })
	snap := backend.Diff(w.prev, next, func(c *data.Conversation) string { return c.ID })
	w.prev = next
	return func() { w.fn(snap) }
}

func (s *Store) conversationNotes() []func() {
	notes := make([]func(), 0, len(s.convWatchers))
	for _, w := range s.convWatchers {
		notes = append(notes, s.conversationNote(w))
	}
	return notes
}

func (s *Store) messageNote(w *msgWatcher) func() {
	next := cloneMessages(s.sortedMessages(w.conversationID))
	snap := backend.Diff(w.prev, next, func(m *data.Message) string { return m.ID })
	w.prev = next
	return func() { w.fn(snap) }
}

func (s *Store) messageNotes(conversationID string) []func() {
	var notes []func()
	for _, w := range s.msgWatchers {
		if w.conversationID == conversationID {
			notes = append(notes, s.messageNote(w))
		}
	}
	return notes
}

// sortedMessages orders by timestamp with pending writes last. Callers hold mu.
func (s *Store) sortedMessages(conversationID string) []*data.Message {
	msgs := append([]*data.Message(nil), s.messages[conversationID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Before(msgs[j]) })
	return msgs
}

// ---- credentials ----

// CreateUser stores a credential. Emails are unique after normalization.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*data.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpCreateUser); err != nil {
		return nil, err
	}
	email = normalize.Email(email)
	if _, ok := s.emails[email]; ok {
		return nil, backend.ErrDuplicateAccount
	}
	now := s.now()
	acc := &data.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.accounts[acc.ID] = acc
	s.emails[email] = acc.ID
	cp := *acc
	return &cp, nil
}

// GetUserByEmail finds a credential by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*data.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[normalize.Email(email)]
	if !ok {
		return nil, backend.ErrNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

// GetUserByID finds a credential by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*data.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func cloneConversation(c *data.Conversation) *data.Conversation {
	cp := *c
	cp.Members = append([]string(nil), c.Members...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}

func cloneMessages(in []*data.Message) []*data.Message {
	out := make([]*data.Message, len(in))
	for i, m := range in {
		cp := *m
		out[i] = &cp
	}
	return out
}
