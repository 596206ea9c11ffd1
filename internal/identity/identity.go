// Package identity derives the labels and identifiers shown for users and
// conversations.
package identity

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PaulBabatuyi/pairchat/internal/data"
)

// Placeholder is shown for a profile that carries no usable name field.
const Placeholder = "Unknown User"

// pairSeparator joins the two member ids of a conversation id.
const pairSeparator = "_"

// DisplayName resolves a profile to a single label: name, then full name,
// then the local part of the email, then Placeholder.
func DisplayName(p *data.Profile) string {
	if p == nil {
		return Placeholder
	}
	if p.Name != "" {
		return p.Name
	}
	if p.FullName != "" {
		return p.FullName
	}
	if p.Email != "" {
		local, _, _ := strings.Cut(p.Email, "@")
		return local
	}
	return Placeholder
}

// Initial returns the upper-cased first letter of a display name, used as
// the avatar.
func Initial(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

// ConversationID returns the identifier of the conversation between a and b.
// It depends only on the unordered pair, so ConversationID(a, b) equals
// ConversationID(b, a).
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, pairSeparator)
}

// Counterpart returns the member that is not self, or "" when there is none.
func Counterpart(members []string, self string) string {
	for _, m := range members {
		if m != self {
			return m
		}
	}
	return ""
}
