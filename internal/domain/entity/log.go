package entity

// Log is an append-only sequence. Merging two logs is concatenation in
// emission order; there is no way to remove or reorder entries.
type Log[T any] struct {
	items []T
}

func NewLog[T any](items ...T) Log[T] {
	var l Log[T]
	l.Append(items...)
	return l
}

func (l *Log[T]) Append(items ...T) {
	l.items = append(l.items, items...)
}

// Items returns a copy of the entries.
func (l Log[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

func (l Log[T]) Len() int {
	return len(l.items)
}

func (l Log[T]) Last() (T, bool) {
	var zero T
	if len(l.items) == 0 {
		return zero, false
	}
	return l.items[len(l.items)-1], true
}

// Tail returns a copy of at most n trailing entries.
func (l Log[T]) Tail(n int) []T {
	if n <= 0 {
		return nil
	}
	if n >= len(l.items) {
		return l.Items()
	}
	out := make([]T, n)
	copy(out, l.items[len(l.items)-n:])
	return out
}

func Contains[T comparable](l Log[T], v T) bool {
	for _, item := range l.items {
		if item == v {
			return true
		}
	}
	return false
}

// Distinct returns entries in first-seen order without duplicates.
func Distinct[T comparable](l Log[T]) []T {
	seen := make(map[T]struct{}, len(l.items))
	out := make([]T, 0, len(l.items))
	for _, item := range l.items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
