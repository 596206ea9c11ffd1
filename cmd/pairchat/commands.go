package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PaulBabatuyi/pairchat/internal/app"
	"github.com/PaulBabatuyi/pairchat/internal/chatlist"
	"github.com/PaulBabatuyi/pairchat/internal/picker"
)

const helpText = `commands:
  /signup <email> <password> <name...>   create an account
  /login <email> <password>              sign in
  /logout                                sign out
  /new                                   list users to chat with
  /pick <n>                              start a chat with user n
  /cancel                                close the user list
  /open <n>                              open conversation n
  /filter [text]                         filter conversations by name
  /retry                                 resend the last failed message
  /quit                                  exit
anything else is sent to the open conversation`

// screen is what the shell reads back from the renderer to resolve numbered
// arguments.
type screen interface {
	Entry(n int) (chatlist.Entry, bool)
	Candidate(n int) (picker.Candidate, bool)
	ShowError(msg string)
}

// shell turns input lines into client actions. It runs on the event loop.
type shell struct {
	client  *app.Client
	ui      screen
	out     io.Writer
	timeout time.Duration

	// retry holds the text of a send that failed
	retry string
}

func newShell(client *app.Client, ui screen, out io.Writer, timeout time.Duration) *shell {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &shell{client: client, ui: ui, out: out, timeout: timeout}
}

// parseLine splits a slash command into its lower-cased name and arguments.
// ok is false for plain text.
func parseLine(line string) (name string, args []string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", nil, false
	}
	fields := strings.Fields(line)
	return strings.ToLower(strings.TrimPrefix(fields[0], "/")), fields[1:], true
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// run executes one line and reports whether the client should exit. Failures
// are already on screen; they are only logged here.
func (s *shell) run(ctx context.Context, line string) (quit bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name, args, ok := parseLine(line)
	if !ok {
		s.send(ctx, line)
		return false
	}

	var err error
	switch name {
	case "signup":
		err = s.client.Controller().SignUp(ctx, strings.Join(args[min(2, len(args)):], " "), arg(args, 0), arg(args, 1))
	case "login":
		err = s.client.Controller().SignIn(ctx, arg(args, 0), arg(args, 1))
	case "logout":
		err = s.client.Controller().SignOut(ctx)
	case "new":
		err = s.client.Picker().Open(ctx)
	case "pick":
		err = s.pick(ctx, args)
	case "cancel":
		s.client.Picker().Close()
	case "open":
		err = s.open(args)
	case "filter":
		s.client.List().Filter(strings.Join(args, " "))
	case "retry":
		if s.retry != "" {
			s.send(ctx, s.retry)
		}
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "quit", "exit":
		return true
	default:
		s.ui.ShowError(fmt.Sprintf("unknown command /%s, try /help", name))
	}
	if err != nil {
		log.Debug().Err(err).Str("command", name).Msg("command failed")
	}
	return false
}

func (s *shell) index(args []string) (int, bool) {
	n, err := strconv.Atoi(arg(args, 0))
	if err != nil {
		s.ui.ShowError("expected a number")
		return 0, false
	}
	return n, true
}

func (s *shell) pick(ctx context.Context, args []string) error {
	n, ok := s.index(args)
	if !ok {
		return nil
	}
	c, ok := s.ui.Candidate(n)
	if !ok {
		s.ui.ShowError(fmt.Sprintf("no user %d, run /new first", n))
		return nil
	}
	return s.client.Picker().Pick(ctx, c.ID)
}

func (s *shell) open(args []string) error {
	n, ok := s.index(args)
	if !ok {
		return nil
	}
	e, ok := s.ui.Entry(n)
	if !ok {
		s.ui.ShowError(fmt.Sprintf("no conversation %d", n))
		return nil
	}
	return s.client.List().Select(e.ConversationID)
}

// send keeps the text of a failed send for /retry.
func (s *shell) send(ctx context.Context, text string) {
	sent, err := s.client.Composer().Send(ctx, text)
	if err != nil {
		s.retry = text
		log.Debug().Err(err).Msg("send failed")
		return
	}
	if sent {
		s.retry = ""
	}
}
