package device

import "fmt"

// Items is the nested "items" object of a collection envelope.
type Items[T any] struct {
	Item []T `json:"item"`
}

// ListResult wraps a collection of T, used for every collection endpoint.
type ListResult[T any] struct {
	Type          string   `json:"type,omitempty"`
	LimitExceeded bool     `json:"limitExceeded"`
	Size          int      `json:"size"`
	Items         Items[T] `json:"items"`
}

// NewListResult builds an envelope around items.
func NewListResult[T any](items []T) ListResult[T] {
	if items == nil {
		items = []T{}
	}
	return ListResult[T]{
		Size:  len(items),
		Items: Items[T]{Item: items},
	}
}

// All returns the wrapped items. Never nil.
func (l *ListResult[T]) All() []T {
	if l == nil || l.Items.Item == nil {
		return []T{}
	}
	return l.Items.Item
}

// Len returns the number of wrapped items.
func (l *ListResult[T]) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items.Item)
}

// Validate checks that every device has an ID and that IDs are unique.
func Validate(list *ListResult[Device]) error {
	seen := make(map[string]int, list.Len())
	for i, d := range list.All() {
		if d.ID == "" {
			return fmt.Errorf("item %d: %w", i, ErrMissingID)
		}
		if first, ok := seen[d.ID]; ok {
			return fmt.Errorf("%w: %q at items %d and %d", ErrDuplicateID, d.ID, first, i)
		}
		seen[d.ID] = i
	}
	return nil
}
