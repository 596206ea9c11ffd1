package identity

import (
	"testing"

	"github.com/PaulBabatuyi/pairchat/internal/data"
)

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name string
		in   *data.Profile
		want string
	}{
		{"name wins", &data.Profile{Name: "Ada", FullName: "Ada Lovelace", Email: "ada@example.com"}, "Ada"},
		{"full name next", &data.Profile{FullName: "Ada Lovelace", Email: "ada@example.com"}, "Ada Lovelace"},
		{"email local part", &data.Profile{Email: "ada.l@example.com"}, "ada.l"},
		{"email without at", &data.Profile{Email: "ada"}, "ada"},
		{"placeholder", &data.Profile{ID: "u1"}, Placeholder},
		{"nil profile", nil, Placeholder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DisplayName(tc.in); got != tc.want {
				t.Fatalf("DisplayName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInitial(t *testing.T) {
	if got := Initial("ada"); got != "A" {
		t.Fatalf("Initial(ada) = %q", got)
	}
	if got := Initial("élodie"); got != "É" {
		t.Fatalf("Initial(élodie) = %q", got)
	}
	if got := Initial(""); got != "?" {
		t.Fatalf("Initial(\"\") = %q", got)
	}
}

func TestConversationIDIsCommutative(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"Zed", "amy"},
		{"u_1", "u_10"},
		{"x", "y"},
	}
	for _, p := range pairs {
		ab := ConversationID(p[0], p[1])
		ba := ConversationID(p[1], p[0])
		if ab != ba {
			t.Fatalf("ConversationID(%q,%q)=%q but reversed gave %q", p[0], p[1], ab, ba)
		}
	}
	if got := ConversationID("bob", "alice"); got != "alice_bob" {
		t.Fatalf("expected sorted join, got %q", got)
	}
}

func TestCounterpart(t *testing.T) {
	if got := Counterpart([]string{"a", "b"}, "a"); got != "b" {
		t.Fatalf("got %q", got)
	}
	if got := Counterpart([]string{"a", "b"}, "b"); got != "a" {
		t.Fatalf("got %q", got)
	}
	if got := Counterpart([]string{"a"}, "a"); got != "" {
		t.Fatalf("expected empty counterpart, got %q", got)
	}
}
