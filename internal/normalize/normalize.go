// Package normalize canonicalizes user input before it is compared or stored.
package normalize

import "strings"

// Email trims surrounding whitespace and lower-cases the address. Accounts are
// looked up by this form.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Name trims a display name typed at sign-up.
func Name(n string) string {
	return strings.TrimSpace(n)
}

// SearchTerm prepares a list filter query for case-insensitive matching.
func SearchTerm(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Matches reports whether label contains the normalized term. An empty term
// matches everything.
func Matches(label, term string) bool {
	return term == "" || strings.Contains(strings.ToLower(label), term)
}
