package picker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/pairchat/internal/backend/memory"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/eventloop"
	"github.com/PaulBabatuyi/pairchat/internal/session"
)

type fakeUI struct {
	lists      [][]Candidate
	pickerErrs []string
	errs       []string
	closed     int
}

func (f *fakeUI) RenderPicker(c []Candidate) { f.lists = append(f.lists, c) }
func (f *fakeUI) ShowPickerError(msg string) { f.pickerErrs = append(f.pickerErrs, msg) }
func (f *fakeUI) ClosePicker()               { f.closed++ }
func (f *fakeUI) ShowError(msg string)       { f.errs = append(f.errs, msg) }

type activation struct{ conv, other, name string }

type fakeActivator struct{ got []activation }

func (f *fakeActivator) Activate(conv, other, name string) error {
	f.got = append(f.got, activation{conv, other, name})
	return nil
}

func setup(t *testing.T, profiles ...*data.Profile) (*Picker, *memory.Store, *fakeUI, *fakeActivator) {
	t.Helper()
	store := memory.New()
	for _, p := range profiles {
		require.NoError(t, store.PutProfile(context.Background(), p))
	}
	sess := session.NewContext(eventloop.NewManual())
	sess.SetUser(&data.Profile{ID: "a", Name: "Alice"})
	ui := &fakeUI{}
	act := &fakeActivator{}
	return New(sess, store, store, ui, act), store, ui, act
}

func TestOpenExcludesSelfAndSorts(t *testing.T) {
	p, _, ui, _ := setup(t,
		&data.Profile{ID: "a", Name: "Alice"},
		&data.Profile{ID: "c", Name: "Carol"},
		&data.Profile{ID: "b", Email: "bob@example.com"},
	)

	require.NoError(t, p.Open(context.Background()))
	require.Len(t, ui.lists, 1)
	got := ui.lists[0]
	require.Len(t, got, 2)
	assert.Equal(t, Candidate{ID: "c", Name: "Carol", Initial: "C"}, got[0])
	assert.Equal(t, Candidate{ID: "b", Name: "bob", Initial: "B", Email: "bob@example.com"}, got[1])
	assert.True(t, p.IsOpen())
}

func TestOpenKeepsDuplicateNamesDistinct(t *testing.T) {
	p, _, ui, _ := setup(t,
		&data.Profile{ID: "x2", Name: "Sam"},
		&data.Profile{ID: "x1", Name: "Sam"},
	)

	require.NoError(t, p.Open(context.Background()))
	got := ui.lists[0]
	require.Len(t, got, 2)
	assert.Equal(t, "x1", got[0].ID)
	assert.Equal(t, "x2", got[1].ID)
}

func TestOpenEmpty(t *testing.T) {
	p, _, ui, _ := setup(t, &data.Profile{ID: "a", Name: "Alice"})

	require.NoError(t, p.Open(context.Background()))
	require.Len(t, ui.lists, 1)
	assert.Empty(t, ui.lists[0])
}

func TestOpenFailure(t *testing.T) {
	p, store, ui, _ := setup(t)
	store.FailNext(memory.OpListProfiles, errors.New("unavailable"))

	require.Error(t, p.Open(context.Background()))
	assert.Equal(t, []string{MsgLoadFailed}, ui.pickerErrs)
	assert.Empty(t, ui.lists)
}

func TestPickCreatesConversationOnce(t *testing.T) {
	p, store, ui, act := setup(t, &data.Profile{ID: "b", Name: "Bob"})
	ctx := context.Background()

	require.NoError(t, p.Open(ctx))
	require.NoError(t, p.Pick(ctx, "b"))

	conv, err := store.GetConversation(ctx, "a_b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, conv.Members)
	assert.Nil(t, conv.LastMessage)
	assert.Equal(t, []activation{{"a_b", "b", "Bob"}}, act.got)
	assert.False(t, p.IsOpen())
	assert.Equal(t, 1, ui.closed)

	// picking the same user again reuses the document
	require.NoError(t, store.UpdateSummary(ctx, "a_b", "hello"))
	require.NoError(t, p.Open(ctx))
	require.NoError(t, p.Pick(ctx, "b"))
	conv, err = store.GetConversation(ctx, "a_b")
	require.NoError(t, err)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "hello", conv.LastMessage.Text)
	assert.Len(t, act.got, 2)
}

func TestPickFailureKeepsPickerOpen(t *testing.T) {
	p, store, ui, act := setup(t, &data.Profile{ID: "b", Name: "Bob"})
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))
	store.FailNext(memory.OpCreateConversation, errors.New("unavailable"))

	require.Error(t, p.Pick(ctx, "b"))
	assert.Equal(t, []string{MsgStartFailed}, ui.errs)
	assert.True(t, p.IsOpen())
	assert.Empty(t, act.got)
}

func TestPickUnknownUser(t *testing.T) {
	p, _, _, _ := setup(t)
	require.NoError(t, p.Open(context.Background()))
	assert.Error(t, p.Pick(context.Background(), "nobody"))
}
