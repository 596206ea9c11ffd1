package backend

import "reflect"

// ChangeKind tags a delta inside a snapshot.
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one delta of a live query result.
type Change[T any] struct {
	Kind ChangeKind
	Doc  T
}

// Snapshot is one emission of a live query: the full result set plus the
// deltas against the previous emission.
type Snapshot[T any] struct {
	Docs    []T
	Changes []Change[T]
}

// Diff builds the snapshot that moves a subscriber from prev to next. key
// identifies a document; documents with equal keys whose values differ are
// reported as Modified. Removed changes come first, then Added and Modified
// in the order of next.
func Diff[T any](prev, next []T, key func(T) string) Snapshot[T] {
	old := make(map[string]T, len(prev))
	for _, d := range prev {
		old[key(d)] = d
	}
	seen := make(map[string]struct{}, len(next))

	var changes []Change[T]
	for _, d := range next {
		seen[key(d)] = struct{}{}
	}
	for _, d := range prev {
		if _, ok := seen[key(d)]; !ok {
			changes = append(changes, Change[T]{Kind: Removed, Doc: d})
		}
	}
	for _, d := range next {
		before, ok := old[key(d)]
		switch {
		case !ok:
			changes = append(changes, Change[T]{Kind: Added, Doc: d})
		case !reflect.DeepEqual(before, d):
			changes = append(changes, Change[T]{Kind: Modified, Doc: d})
		}
	}
	return Snapshot[T]{Docs: next, Changes: changes}
}
