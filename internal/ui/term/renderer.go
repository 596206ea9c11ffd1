// Package term draws the chat client as styled lines on a terminal.
package term

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/PaulBabatuyi/pairchat/internal/app"
	"github.com/PaulBabatuyi/pairchat/internal/chatlist"
	"github.com/PaulBabatuyi/pairchat/internal/picker"
	"github.com/PaulBabatuyi/pairchat/internal/presence"
	"github.com/PaulBabatuyi/pairchat/internal/thread"
)

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#10B981") // own messages
	mutedColor     = lipgloss.Color("#9CA3AF")
	errorColor     = lipgloss.Color("#EF4444")
)

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	muted    lipgloss.Style
	err      lipgloss.Style
	own      lipgloss.Style
	peer     lipgloss.Style
	active   lipgloss.Style
	online   lipgloss.Style
	listItem lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().Bold(true).Foreground(primaryColor),
		header: r.NewStyle().
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(mutedColor),
		muted:    r.NewStyle().Foreground(mutedColor),
		err:      r.NewStyle().Foreground(errorColor).Bold(true),
		own:      r.NewStyle().Foreground(secondaryColor),
		peer:     r.NewStyle().Foreground(primaryColor),
		active:   r.NewStyle().Foreground(secondaryColor).Bold(true),
		online:   r.NewStyle().Foreground(secondaryColor),
		listItem: r.NewStyle().PaddingLeft(2),
	}
}

// Renderer implements app.UI by printing to w. It keeps what it last drew so
// numbered commands can refer to it.
type Renderer struct {
	mu sync.Mutex
	w  io.Writer
	st styles

	entries     []chatlist.Entry
	candidates  []picker.Candidate
	messages    []thread.Item
	counterpart string
	lastErr     string
}

var _ app.UI = (*Renderer)(nil)

// New returns a renderer writing to w. Colors follow w's capabilities.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w, st: newStyles(lipgloss.NewRenderer(w))}
}

func (r *Renderer) println(s string) {
	fmt.Fprintln(r.w, s)
}

func (r *Renderer) ShowLogin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries, r.candidates, r.messages, r.counterpart = nil, nil, nil, ""
	r.println(r.st.title.Render("pairchat"))
	r.println(r.st.muted.Render("/signup <email> <password> <name>  or  /login <email> <password>"))
}

func (r *Renderer) ShowMain(displayName, initial string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.st.title.Render(fmt.Sprintf("[%s] %s", initial, displayName)))
	r.println(r.st.muted.Render("/new to start a chat, /open <n> to open one, /logout to sign out"))
}

func (r *Renderer) ShowError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = msg
	r.println(r.st.err.Render("! " + msg))
}

func (r *Renderer) ClearError() {
	r.mu.Lock()
	r.lastErr = ""
	r.mu.Unlock()
}

// LastError returns the banner text, or "" once cleared.
func (r *Renderer) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Renderer) RenderConversations(entries []chatlist.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = r.entries[:0]
	for _, e := range entries {
		if !e.Hidden {
			r.entries = append(r.entries, e)
		}
	}

	r.println(r.st.header.Render("Chats"))
	if len(entries) == 0 {
		r.println(r.st.listItem.Render(r.st.muted.Render(chatlist.EmptyState)))
		return
	}
	for i, e := range r.entries {
		marker := " "
		if e.Active {
			marker = ">"
		}
		dot := r.st.muted.Render("o")
		if e.Online {
			dot = r.st.online.Render("●")
		}
		name := e.Name
		if e.Active {
			name = r.st.active.Render(name)
		}
		line := fmt.Sprintf("%s%d. %s [%s] %s  %s", marker, i+1, dot, e.Initial, name, r.st.muted.Render(e.Preview))
		if e.UpdatedLabel != "" {
			line += r.st.muted.Render("  · " + e.UpdatedLabel)
		}
		r.println(r.st.listItem.Render(line))
	}
}

// Entry returns the n-th (1-based) visible conversation.
func (r *Renderer) Entry(n int) (chatlist.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 1 || n > len(r.entries) {
		return chatlist.Entry{}, false
	}
	return r.entries[n-1], true
}

func (r *Renderer) ShowConversation(name, initial string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counterpart = name
	r.println(r.st.header.Render(fmt.Sprintf("[%s] %s", initial, name)))
}

func (r *Renderer) ClearThread() {
	r.mu.Lock()
	r.messages = nil
	r.mu.Unlock()
}

// InsertMessage prints a message appended at the end and redraws the thread
// when an older message arrives late.
func (r *Renderer) InsertMessage(index int, it thread.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, thread.Item{})
	copy(r.messages[index+1:], r.messages[index:])
	r.messages[index] = it

	if index == len(r.messages)-1 {
		r.println(r.message(it))
		return
	}
	r.println(r.st.muted.Render("-- earlier message arrived --"))
	for _, m := range r.messages {
		r.println(r.message(m))
	}
}

func (r *Renderer) UpdateMessage(index int, it thread.Item) {
	r.mu.Lock()
	r.messages[index] = it
	r.mu.Unlock()
}

func (r *Renderer) RemoveMessage(index int) {
	r.mu.Lock()
	r.messages = append(r.messages[:index], r.messages[index+1:]...)
	r.mu.Unlock()
}

// ScrollToBottom is a no-op: the newest line is always the last one printed.
func (r *Renderer) ScrollToBottom() {}

func (r *Renderer) message(it thread.Item) string {
	who := r.counterpart
	style := r.st.peer
	if it.Sent {
		who = "you"
		style = r.st.own
	}
	return fmt.Sprintf("%s %s %s", r.st.muted.Render(it.TimeLabel), style.Render(who+":"), it.Text)
}

// Messages returns the texts of the rendered thread.
func (r *Renderer) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Text
	}
	return out
}

func (r *Renderer) RenderPresence(st presence.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text := r.st.muted.Render(st.Text)
	if st.Online {
		text = r.st.online.Render(st.Text)
	}
	r.println(r.st.listItem.Render(text))
}

func (r *Renderer) RenderPicker(candidates []picker.Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = candidates
	r.println(r.st.header.Render("New chat"))
	if len(candidates) == 0 {
		r.println(r.st.listItem.Render(r.st.muted.Render(picker.NoCandidates)))
		return
	}
	var b strings.Builder
	for i, c := range candidates {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. [%s] %s %s", i+1, c.Initial, c.Name, r.st.muted.Render(c.Email))
	}
	r.println(r.st.listItem.Render(b.String()))
	r.println(r.st.muted.Render("/pick <n> to start, /cancel to close"))
}

func (r *Renderer) ShowPickerError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.st.err.Render("! " + msg))
}

func (r *Renderer) ClosePicker() {
	r.mu.Lock()
	r.candidates = nil
	r.mu.Unlock()
}

// Candidate returns the n-th (1-based) user in the open picker.
func (r *Renderer) Candidate(n int) (picker.Candidate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 1 || n > len(r.candidates) {
		return picker.Candidate{}, false
	}
	return r.candidates[n-1], true
}
