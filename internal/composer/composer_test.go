package composer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/pairchat/internal/apperr"
	"github.com/PaulBabatuyi/pairchat/internal/backend/memory"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/eventloop"
	"github.com/PaulBabatuyi/pairchat/internal/session"
)

type banner struct{ errs []string }

func (b *banner) ShowError(msg string) { b.errs = append(b.errs, msg) }

func setup(t *testing.T) (*Composer, *memory.Store, *session.Context, *banner) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.CreateConversation(context.Background(), "a_b", []string{"a", "b"}))

	sess := session.NewContext(eventloop.NewManual())
	sess.SetUser(&data.Profile{ID: "a", Name: "Alice"})
	sess.Activate(session.Active{ConversationID: "a_b", CounterpartID: "b", CounterpartName: "Bob"})
	ui := &banner{}
	return New(sess, store, ui), store, sess, ui
}

func TestSendAppendsOneMessageAndUpdatesSummary(t *testing.T) {
	c, store, _, ui := setup(t)
	ctx := context.Background()
	before, err := store.GetConversation(ctx, "a_b")
	require.NoError(t, err)

	sent, err := c.Send(ctx, "  hello  ")
	require.NoError(t, err)
	assert.True(t, sent)

	msgs := store.Messages("a_b")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "a", msgs[0].SenderID)
	assert.False(t, msgs[0].Pending())

	after, err := store.GetConversation(ctx, "a_b")
	require.NoError(t, err)
	require.NotNil(t, after.LastMessage)
	assert.Equal(t, "hello", after.LastMessage.Text)
	assert.True(t, after.LastUpdated.After(before.LastUpdated))
	assert.Empty(t, ui.errs)
}

func TestSendIgnoresBlankText(t *testing.T) {
	c, store, _, ui := setup(t)

	sent, err := c.Send(context.Background(), " \t\n")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, store.Messages("a_b"))
	assert.Empty(t, ui.errs)
}

func TestSendWithoutActiveConversation(t *testing.T) {
	store := memory.New()
	sess := session.NewContext(eventloop.NewManual())
	sess.SetUser(&data.Profile{ID: "a"})
	c := New(sess, store, &banner{})

	sent, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestSendAppendFailure(t *testing.T) {
	c, store, _, ui := setup(t)
	store.FailNext(memory.OpAppendMessage, errors.New("unavailable"))

	sent, err := c.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.False(t, sent)
	assert.True(t, apperr.Is(err, apperr.CodeBackend))
	assert.Equal(t, []string{MsgSendFailed}, ui.errs)
	assert.Empty(t, store.Messages("a_b"))
}

func TestSendSummaryFailureLeavesStalePreview(t *testing.T) {
	c, store, _, ui := setup(t)
	ctx := context.Background()
	store.FailNext(memory.OpUpdateSummary, errors.New("unavailable"))

	_, err := c.Send(ctx, "hello")
	require.Error(t, err)
	assert.Equal(t, []string{MsgSendFailed}, ui.errs)

	// the message itself was stored
	require.Len(t, store.Messages("a_b"), 1)
	conv, err := store.GetConversation(ctx, "a_b")
	require.NoError(t, err)
	assert.Nil(t, conv.LastMessage)
}

type atomicDocs struct {
	*memory.Store
	calls int
}

func (d *atomicDocs) SendMessage(ctx context.Context, conversationID, senderID, text string) (*data.Message, error) {
	d.calls++
	m, err := d.AppendMessage(ctx, conversationID, senderID, text)
	if err != nil {
		return nil, err
	}
	return m, d.UpdateSummary(ctx, conversationID, text)
}

func TestSendPrefersAtomicSender(t *testing.T) {
	store := memory.New(memory.WithClock(func() time.Time { return time.Unix(0, 0) }))
	require.NoError(t, store.CreateConversation(context.Background(), "a_b", []string{"a", "b"}))
	docs := &atomicDocs{Store: store}

	sess := session.NewContext(eventloop.NewManual())
	sess.SetUser(&data.Profile{ID: "a"})
	sess.Activate(session.Active{ConversationID: "a_b", CounterpartID: "b"})
	c := New(sess, docs, &banner{})

	sent, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, docs.calls)
	assert.Len(t, store.Messages("a_b"), 1)
}
