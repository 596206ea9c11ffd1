package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "pairchat", false)

	l.Debug().Msg("hidden")
	l.Info().Str("user_id", "u1").Msg("signed in")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "| signed in")
	assert.Contains(t, out, "user_id:u1")
	assert.Contains(t, out, "service:pairchat")
}

func TestNewDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "pairchat", true)

	l.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}
