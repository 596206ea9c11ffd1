package chatlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/pairchat/internal/backend/memory"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/eventloop"
	"github.com/PaulBabatuyi/pairchat/internal/identity"
	"github.com/PaulBabatuyi/pairchat/internal/session"
)

type fakeUI struct{ renders [][]Entry }

func (f *fakeUI) RenderConversations(e []Entry) { f.renders = append(f.renders, e) }

func (f *fakeUI) last() []Entry {
	if len(f.renders) == 0 {
		return nil
	}
	return f.renders[len(f.renders)-1]
}

type fakeActivator struct {
	sess *session.Context
	got  []string
}

func (f *fakeActivator) Activate(conv, other, name string) error {
	f.got = append(f.got, conv+"|"+other+"|"+name)
	f.sess.Activate(session.Active{ConversationID: conv, CounterpartID: other, CounterpartName: name})
	return nil
}

type harness struct {
	view  *View
	store *memory.Store
	sess  *session.Context
	loop  *eventloop.Manual
	ui    *fakeUI
	act   *fakeActivator
}

func newHarness(t *testing.T, policy Policy) *harness {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for _, p := range []*data.Profile{
		{ID: "a", Name: "Alice"},
		{ID: "b", Name: "Bob", Online: true},
		{ID: "c", Name: "Carol"},
	} {
		require.NoError(t, store.PutProfile(ctx, p))
	}

	loop := eventloop.NewManual()
	sess := session.NewContext(loop)
	sess.SetUser(&data.Profile{ID: "a", Name: "Alice"})
	ui := &fakeUI{}
	act := &fakeActivator{sess: sess}
	v := New(Deps{
		Context:   sess,
		Documents: store,
		Profiles:  store,
		UI:        ui,
		Activator: act,
		Policy:    policy,
	})
	return &harness{view: v, store: store, sess: sess, loop: loop, ui: ui, act: act}
}

func convIDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ConversationID
	}
	return out
}

func TestEmptyList(t *testing.T) {
	h := newHarness(t, DropMissing)
	require.NoError(t, h.view.Start())
	h.loop.Flush()

	require.Len(t, h.ui.renders, 1)
	assert.Empty(t, h.ui.last())
}

func TestSortedByLastUpdate(t *testing.T) {
	h := newHarness(t, DropMissing)
	ctx := context.Background()
	require.NoError(t, h.store.CreateConversation(ctx, identity.ConversationID("a", "b"), []string{"a", "b"}))
	require.NoError(t, h.store.CreateConversation(ctx, identity.ConversationID("a", "c"), []string{"a", "c"}))
	require.NoError(t, h.store.CreateConversation(ctx, identity.ConversationID("b", "c"), []string{"b", "c"}))

	require.NoError(t, h.view.Start())
	h.loop.Flush()
	assert.Equal(t, []string{"a_c", "a_b"}, convIDs(h.ui.last()))

	require.NoError(t, h.store.UpdateSummary(ctx, "a_b", "hello"))
	h.loop.Flush()

	entries := h.ui.last()
	assert.Equal(t, []string{"a_b", "a_c"}, convIDs(entries))
	assert.Equal(t, "Bob", entries[0].Name)
	assert.Equal(t, "B", entries[0].Initial)
	assert.True(t, entries[0].Online)
	assert.Equal(t, "hello", entries[0].Preview)
	assert.Equal(t, NoPreview, entries[1].Preview)
	assert.NotEmpty(t, entries[0].UpdatedLabel)
}

func TestZeroTimestampSortsLast(t *testing.T) {
	h := newHarness(t, DropMissing)
	convs := []*data.Conversation{
		{ID: "a_b", Members: []string{"a", "b"}},
		{ID: "a_c", Members: []string{"a", "c"}, LastUpdated: time.Unix(100, 0)},
	}

	entries := h.view.build(context.Background(), "a", convs)
	assert.Equal(t, []string{"a_c", "a_b"}, convIDs(entries))
}

func TestMissingProfilePolicy(t *testing.T) {
	convs := []*data.Conversation{
		{ID: "a_b", Members: []string{"a", "b"}, LastUpdated: time.Unix(100, 0)},
		{ID: "a_z", Members: []string{"a", "z"}, LastUpdated: time.Unix(200, 0)},
	}

	drop := newHarness(t, DropMissing)
	assert.Equal(t, []string{"a_b"}, convIDs(drop.view.build(context.Background(), "a", convs)))

	keep := newHarness(t, PlaceholderMissing)
	entries := keep.view.build(context.Background(), "a", convs)
	require.Len(t, entries, 2)
	assert.Equal(t, identity.Placeholder, entries[0].Name)
	assert.Equal(t, "z", entries[0].CounterpartID)
}

func TestFilterHidesWithoutQuerying(t *testing.T) {
	h := newHarness(t, DropMissing)
	ctx := context.Background()
	require.NoError(t, h.store.CreateConversation(ctx, "a_b", []string{"a", "b"}))
	require.NoError(t, h.store.CreateConversation(ctx, "a_c", []string{"a", "c"}))
	require.NoError(t, h.view.Start())
	h.loop.Flush()

	h.view.Filter("  CAR ")
	visible := h.view.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "Carol", visible[0].Name)
	assert.Len(t, h.view.Entries(), 2)

	h.view.Filter("")
	assert.Len(t, h.view.Visible(), 2)
}

func TestSelectMarksActive(t *testing.T) {
	h := newHarness(t, DropMissing)
	ctx := context.Background()
	require.NoError(t, h.store.CreateConversation(ctx, "a_b", []string{"a", "b"}))
	require.NoError(t, h.view.Start())
	h.loop.Flush()

	require.NoError(t, h.view.Select("a_b"))
	h.view.Refresh()

	assert.Equal(t, []string{"a_b|b|Bob"}, h.act.got)
	assert.True(t, h.ui.last()[0].Active)
	assert.Error(t, h.view.Select("nope"))
}

func TestResetStopsSubscription(t *testing.T) {
	h := newHarness(t, DropMissing)
	require.NoError(t, h.view.Start())
	h.loop.Flush()
	n := len(h.ui.renders)

	h.view.Reset()
	require.NoError(t, h.store.CreateConversation(context.Background(), "a_b", []string{"a", "b"}))
	h.loop.Flush()

	assert.Len(t, h.ui.renders, n)
	assert.Zero(t, h.store.Watchers())
	assert.Empty(t, h.view.Entries())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("placeholder")
	require.NoError(t, err)
	assert.Equal(t, PlaceholderMissing, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DropMissing, p)

	_, err = ParsePolicy("explode")
	assert.Error(t, err)
}
