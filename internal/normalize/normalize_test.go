package normalize

import "testing"

func TestEmail(t *testing.T) {
	in := "  John.DOE@Example.COM  "
	want := "john.doe@example.com"
	got := Email(in)
	if got != want {
		t.Fatalf("Normalize.Email(%q) = %q, want %q", in, got, want)
	}
}

func TestName(t *testing.T) {
	if got := Name("  Ada  "); got != "Ada" {
		t.Fatalf("Name() = %q", got)
	}
}

func TestMatches(t *testing.T) {
	term := SearchTerm("  BoB ")
	if term != "bob" {
		t.Fatalf("SearchTerm() = %q", term)
	}
	if !Matches("Bobby Tables", term) {
		t.Fatal("expected case-insensitive substring match")
	}
	if Matches("Alice", term) {
		t.Fatal("Alice should not match bob")
	}
	if !Matches("anything", "") {
		t.Fatal("empty term should match everything")
	}
}
