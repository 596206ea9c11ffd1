package term

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/pairchat/internal/chatlist"
	"github.com/PaulBabatuyi/pairchat/internal/picker"
	"github.com/PaulBabatuyi/pairchat/internal/presence"
	"github.com/PaulBabatuyi/pairchat/internal/thread"
)

func TestRenderConversationsNumbersVisibleEntries(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	r.RenderConversations([]chatlist.Entry{
		{ConversationID: "a_b", Name: "Bob", Initial: "B", Preview: "hello", UpdatedLabel: "just now", Active: true},
		{ConversationID: "a_c", Name: "Carol", Initial: "C", Preview: chatlist.NoPreview, Hidden: true},
		{ConversationID: "a_d", Name: "Dave", Initial: "D", Preview: chatlist.NoPreview, Online: true},
	})

	out := buf.String()
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "Carol")

	e, ok := r.Entry(2)
	require.True(t, ok)
	assert.Equal(t, "a_d", e.ConversationID)
	_, ok = r.Entry(3)
	assert.False(t, ok)
}

func TestRenderEmptyStates(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	r.RenderConversations(nil)
	r.RenderPicker(nil)

	assert.Contains(t, buf.String(), chatlist.EmptyState)
	assert.Contains(t, buf.String(), picker.NoCandidates)
}

func TestThreadMirror(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	r.ShowConversation("Bob", "B")

	r.InsertMessage(0, thread.Item{ID: "2", Text: "second", TimeLabel: "12:01"})
	r.InsertMessage(0, thread.Item{ID: "1", Text: "first", TimeLabel: "12:00", Sent: true})
	r.InsertMessage(2, thread.Item{ID: "3", Text: "third", TimeLabel: "12:02"})
	assert.Equal(t, []string{"first", "second", "third"}, r.Messages())

	r.UpdateMessage(1, thread.Item{ID: "2", Text: "second!"})
	r.RemoveMessage(0)
	assert.Equal(t, []string{"second!", "third"}, r.Messages())

	out := buf.String()
	assert.Contains(t, out, "you: first")
	assert.Contains(t, out, "Bob: second")

	r.ClearThread()
	assert.Empty(t, r.Messages())
}

func TestPickerAndBanner(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	r.RenderPicker([]picker.Candidate{{ID: "b", Name: "Bob", Initial: "B", Email: "bob@example.com"}})
	c, ok := r.Candidate(1)
	require.True(t, ok)
	assert.Equal(t, "b", c.ID)

	r.ClosePicker()
	_, ok = r.Candidate(1)
	assert.False(t, ok)

	r.ShowError("Failed to load users")
	assert.Equal(t, "Failed to load users", r.LastError())
	r.ClearError()
	assert.Empty(t, r.LastError())

	r.RenderPresence(presence.Status{Online: true, Text: presence.OnlineText})
	assert.Contains(t, buf.String(), presence.OnlineText)
}
