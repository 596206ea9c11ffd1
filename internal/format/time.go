// Package format turns timestamps into the short labels the views show.
package format

import (
	"fmt"
	"time"
)

// JustNow labels a message whose server timestamp has not arrived yet.
const JustNow = "just now"

// Clock renders t as hours and minutes in local time.
func Clock(t time.Time) string {
	return t.Local().Format("15:04")
}

// MessageTime is the label under a message bubble.
func MessageTime(t time.Time) string {
	if t.IsZero() {
		return JustNow
	}
	return Clock(t)
}

// Relative describes t relative to now for the conversation list: "just now",
// "5m ago", "3h ago", "Yesterday", then a date. Zero time renders empty.
func Relative(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return JustNow
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour && sameDay(t, now):
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case sameDay(t, now.AddDate(0, 0, -1)):
		return "Yesterday"
	case t.Year() == now.Year():
		return t.Local().Format("Jan 2")
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}

// LastSeen renders presence for an offline user.
func LastSeen(t, now time.Time) string {
	if t.IsZero() {
		return "Offline"
	}
	if sameDay(t, now) {
		return "Last seen " + Clock(t)
	}
	return "Last seen " + t.Local().Format("Jan 2 15:04")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
