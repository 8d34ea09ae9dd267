package order

import (
	"strings"
	"sync"
)

// Listener receives the ledger contents after every change.
type Listener func(items []LineItem)

// Ledger is the ordered list of pending line items.
//
// Items carry a stable ID assigned on append; positions shift on removal,
// IDs never do. Listeners are called outside the lock.
type Ledger struct {
	mu              sync.Mutex
	items           []LineItem
	nextID          uint64
	allowUnassigned bool
	listeners       []Listener
}

// Option configures a Ledger
type Option func(*Ledger)

// WithUnassigned lets the ledger accept items without a printer.
// They end up in the Unassigned group at dispatch.
func WithUnassigned() Option {
	return func(l *Ledger) {
		l.allowUnassigned = true
	}
}

// WithListener registers a change listener
func WithListener(fn Listener) Option {
	return func(l *Ledger) {
		l.listeners = append(l.listeners, fn)
	}
}

// New creates an empty ledger
func New(opts ...Option) *Ledger {
	l := &Ledger{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe adds a change listener after construction
func (l *Ledger) Subscribe(fn Listener) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Append validates and appends a new item
func (l *Ledger) Append(name string, quantity int, printerID string) (LineItem, error) {
	if err := Validate(name, quantity, printerID, !l.allowUnassigned); err != nil {
		return LineItem{}, err
	}

	l.mu.Lock()
	l.nextID++
	item := LineItem{
		ID:        l.nextID,
		Name:      strings.TrimSpace(name),
		Quantity:  quantity,
		PrinterID: strings.TrimSpace(printerID),
	}
	l.items = append(l.items, item)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snap)
	return item, nil
}

// RemoveAt removes the item at index, shifting later items down
func (l *Ledger) RemoveAt(index int) (LineItem, error) {
	l.mu.Lock()
	if index < 0 || index >= len(l.items) {
		n := len(l.items)
		l.mu.Unlock()
		return LineItem{}, &IndexError{Index: index, Length: n}
	}
	item := l.items[index]
	l.items = append(l.items[:index], l.items[index+1:]...)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snap)
	return item, nil
}

// Remove removes the item with the given ID
func (l *Ledger) Remove(id uint64) (LineItem, error) {
	l.mu.Lock()
	for i, item := range l.items {
		if item.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			snap := l.snapshotLocked()
			l.mu.Unlock()

			l.notify(snap)
			return item, nil
		}
	}
	l.mu.Unlock()
	return LineItem{}, ErrItemNotFound
}

// RemoveIDs removes every item whose ID is in ids. Unknown IDs are ignored.
// Listeners are notified once. It returns the number of items removed.
func (l *Ledger) RemoveIDs(ids []uint64) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	l.mu.Lock()
	kept := l.items[:0]
	for _, item := range l.items {
		if !drop[item.ID] {
			kept = append(kept, item)
		}
	}
	removed := len(l.items) - len(kept)
	l.items = kept
	snap := l.snapshotLocked()
	l.mu.Unlock()

	if removed > 0 {
		l.notify(snap)
	}
	return removed
}

// Clear empties the ledger
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()

	l.notify(nil)
}

// Snapshot returns a copy of the current items in insertion order
func (l *Ledger) Snapshot() []LineItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Len returns the number of items
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *Ledger) snapshotLocked() []LineItem {
	out := make([]LineItem, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) notify(items []LineItem) {
	l.mu.Lock()
	listeners := make([]Listener, len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(items)
	}
}
