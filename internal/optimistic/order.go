package optimistic

import (
	"cmp"
	"time"
)

// SortKey holds the fields display order is derived from.
type SortKey struct {
	ID        int64
	CreatedAt time.Time
	Likes     int
}

// ByRecent orders newest first. Equal timestamps fall back to the higher id
// first so no two distinct entities compare equal.
func ByRecent(a, b SortKey) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// ByTop orders by like count, most liked first, then as ByRecent.
func ByTop(a, b SortKey) int {
	if c := cmp.Compare(b.Likes, a.Likes); c != 0 {
		return c
	}
	return ByRecent(a, b)
}

// Comparator adapts a SortKey ordering to entities of type T.
func Comparator[T any](key func(T) SortKey, order func(a, b SortKey) int) func(a, b T) int {
	return func(a, b T) int {
		return order(key(a), key(b))
	}
}
