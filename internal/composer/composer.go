// Package composer sends messages to the open conversation.
package composer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/PaulBabatuyi/pairchat/internal/apperr"
	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/session"
)

// MsgSendFailed is the banner shown when a send fails.
const MsgSendFailed = "Failed to send message. Please try again."

// Banner shows errors.
type Banner interface {
	ShowError(msg string)
}

// Composer writes new messages. The views pick them up through their live
// subscriptions; the composer never touches them.
type Composer struct {
	sess *session.Context
	docs backend.Documents
	ui   Banner
}

// New returns a composer.
func New(sess *session.Context, docs backend.Documents, ui Banner) *Composer {
	return &Composer{sess: sess, docs: docs, ui: ui}
}

// Send appends text to the active conversation and updates its summary. It
// reports whether anything was sent: blank text or no open conversation is
// silently ignored. On error the caller keeps the input so the user can retry.
func (c *Composer) Send(ctx context.Context, text string) (bool, error) {
	text = strings.TrimSpace(text)
	convID := c.sess.ActiveID()
	uid := c.sess.UserID()
	if text == "" || convID == "" || uid == "" {
		return false, nil
	}

	if err := c.write(ctx, convID, uid, text); err != nil {
		log.Error().Err(err).Str("conversation_id", convID).Msg("send message")
		c.ui.ShowError(MsgSendFailed)
		return false, apperr.Wrap(err, apperr.CodeBackend, MsgSendFailed)
	}
	return true, nil
}

func (c *Composer) write(ctx context.Context, convID, uid, text string) error {
	if tx, ok := c.docs.(backend.AtomicSender); ok {
		_, err := tx.SendMessage(ctx, convID, uid, text)
		return err
	}

	// Two independent writes. If the summary update fails the message is
	// stored but the list preview stays stale until the next send.
	if _, err := c.docs.AppendMessage(ctx, convID, uid, text); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if err := c.docs.UpdateSummary(ctx, convID, text); err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	return nil
}
