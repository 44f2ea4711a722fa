package feed

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"
)

// An Entry is an item a Store can hold.
type Entry[T any] interface {
	EntryID() string
	EntryTime() time.Time
	Clone() T
	// Merge reconciles the receiver, a fresh copy, against prev, the copy already held.
	Merge(prev T) T
}

// LoadStatus is the loading state of a feed.
type LoadStatus string

const (
	Idle        LoadStatus = "idle"
	Loading     LoadStatus = "loading"
	Loaded      LoadStatus = "loaded"
	LoadingMore LoadStatus = "loading_more"
	Errored     LoadStatus = "errored"
)

// FeedState is the pagination and loading state of a feed.
type FeedState struct {
	Status      LoadStatus `json:"status"`
	CurrentPage int        `json:"current_page"`
	TotalPages  int        `json:"total_pages"`
	TotalItems  int        `json:"total_items"`
	HasNextPage bool       `json:"has_next_page"`
	Err         error      `json:"-"`
}

// IsLoading reports whether the first page is loading.
func (s FeedState) IsLoading() bool { return s.Status == Loading }

// IsLoadingMore reports whether a continuation page is loading.
func (s FeedState) IsLoadingMore() bool { return s.Status == LoadingMore }

// A Snapshot is a point-in-time copy of a Store.
type Snapshot[T any] struct {
	Items []T
	State FeedState
}

// Store is the ordered, deduplicated in-memory collection a single view owns. Items are
// kept newest first, ties broken by id descending.
type Store[T Entry[T]] struct {
	mu     sync.RWMutex
	items  []T
	index  map[string]int
	state  FeedState
	closed bool

	subMu   sync.Mutex
	subs    map[int]func(Snapshot[T])
	nextSub int
}

// NewStore returns an empty store in the idle state.
func NewStore[T Entry[T]]() *Store[T] {
	return &Store[T]{
		index: map[string]int{},
		state: FeedState{Status: Idle},
		subs:  map[int]func(Snapshot[T]){},
	}
}

// A Tx is a batch of changes applied atomically by Store.Mutate.
type Tx[T Entry[T]] struct {
	items []T
	index map[string]int
	dirty bool
}

// Get returns a copy of the item with the given id.
func (tx *Tx[T]) Get(id string) (T, bool) {
	i, ok := tx.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return tx.items[i].Clone(), true
}

// Put inserts item, or overwrites the item with the same id.
func (tx *Tx[T]) Put(item T) {
	if i, ok := tx.index[item.EntryID()]; ok {
		tx.items[i] = item
	} else {
		tx.index[item.EntryID()] = len(tx.items)
		tx.items = append(tx.items, item)
	}
	tx.dirty = true
}

// Merge upserts items, reconciling each against the copy already held.
func (tx *Tx[T]) Merge(items ...T) {
	for _, item := range items {
		if i, ok := tx.index[item.EntryID()]; ok {
			tx.items[i] = item.Merge(tx.items[i])
			tx.dirty = true
			continue
		}
		tx.Put(item)
	}
}

// Update applies fn to a copy of the item with the given id and stores the result.
func (tx *Tx[T]) Update(id string, fn func(*T)) bool {
	item, ok := tx.Get(id)
	if !ok {
		return false
	}
	fn(&item)
	tx.items[tx.index[id]] = item
	tx.dirty = true
	return true
}

// Remove deletes the item with the given id.
func (tx *Tx[T]) Remove(id string) bool {
	i, ok := tx.index[id]
	if !ok {
		return false
	}
	tx.items = slices.Delete(tx.items, i, i+1)
	tx.index = indexOf(tx.items)
	tx.dirty = true
	return true
}

// Each calls fn with a copy of every item and stores the result.
func (tx *Tx[T]) Each(fn func(*T)) {
	for i := range tx.items {
		item := tx.items[i].Clone()
		fn(&item)
		tx.items[i] = item
	}
	tx.dirty = true
}

// Items returns copies of the items in their current order.
func (tx *Tx[T]) Items() []T {
	return cloneAll(tx.items)
}

// Mutate runs fn against a working copy of the store. If fn returns an error nothing is
// applied. Subscribers are notified after the change is visible.
func (s *Store[T]) Mutate(fn func(tx *Tx[T]) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	tx := &Tx[T]{items: slices.Clone(s.items), index: indexOf(s.items)}
	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return err
	}
	if tx.dirty {
		s.items = DedupeAndSort(tx.items)
		s.index = indexOf(s.items)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Insert adds item to the store.
func (s *Store[T]) Insert(item T) error {
	return s.Mutate(func(tx *Tx[T]) error {
		tx.Put(item)
		return nil
	})
}

// UpdateByID applies fn to the item with the given id. A missing item is not an error.
func (s *Store[T]) UpdateByID(id string, fn func(*T)) (bool, error) {
	var found bool
	err := s.Mutate(func(tx *Tx[T]) error {
		found = tx.Update(id, fn)
		return nil
	})
	return found, err
}

// RemoveByID deletes the item with the given id.
func (s *Store[T]) RemoveByID(id string) (bool, error) {
	var found bool
	err := s.Mutate(func(tx *Tx[T]) error {
		found = tx.Remove(id)
		return nil
	})
	return found, err
}

// Replace swaps the item stored under oldID for item, which may carry a new id.
func (s *Store[T]) Replace(oldID string, item T) (bool, error) {
	var found bool
	err := s.Mutate(func(tx *Tx[T]) error {
		if found = tx.Remove(oldID); found {
			tx.Merge(item)
		}
		return nil
	})
	return found, err
}

// Merge upserts a batch of fetched items.
func (s *Store[T]) Merge(items []T) error {
	return s.Mutate(func(tx *Tx[T]) error {
		tx.Merge(items...)
		return nil
	})
}

// Restore overwrites stored items with the given copies, bypassing Merge. Items no
// longer in the store are skipped.
func (s *Store[T]) Restore(items ...T) error {
	return s.Mutate(func(tx *Tx[T]) error {
		for _, item := range items {
			if _, ok := tx.index[item.EntryID()]; ok {
				tx.Put(item)
			}
		}
		return nil
	})
}

// Get returns a copy of the item with the given id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.items[i].Clone(), true
}

// Items returns copies of all items, newest first.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.items)
}

// Len returns the number of items.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// State returns the loading state.
func (s *Store[T]) State() FeedState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a consistent copy of items and state.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot[T]{Items: cloneAll(s.items), State: s.state}
}

// Subscribe registers fn to be called after every change. The returned func removes it.
func (s *Store[T]) Subscribe(fn func(Snapshot[T])) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Close detaches the store from its view. Later mutations, including late remote
// results, are dropped.
func (s *Store[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.subMu.Lock()
	clear(s.subs)
	s.subMu.Unlock()
}

// Closed reports whether Close was called.
func (s *Store[T]) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Store[T]) notify() {
	s.subMu.Lock()
	if len(s.subs) == 0 {
		s.subMu.Unlock()
		return
	}
	fns := make([]func(Snapshot[T]), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

// beginLoad moves the state machine into loading or loadingMore.
func (s *Store[T]) beginLoad(more bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	switch {
	case s.state.Status == Loading || s.state.Status == LoadingMore:
		s.mu.Unlock()
		return fmt.Errorf("begin load: already %s", s.state.Status)
	case more && s.state.CurrentPage == 0:
		s.mu.Unlock()
		return ErrNotLoaded
	case more:
		s.state.Status = LoadingMore
	default:
		s.state.Status = Loading
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// failLoad records err and leaves items and cursor untouched.
func (s *Store[T]) failLoad(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.Status = Errored
	s.state.Err = err
	s.mu.Unlock()

	s.notify()
}

// completeLoad merges a fetched page and advances the cursor. A refresh of page one
// keeps the cursor where it was once further pages are loaded.
func (s *Store[T]) completeLoad(page Page[T], requested int, refresh bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	tx := &Tx[T]{items: slices.Clone(s.items), index: indexOf(s.items)}
	tx.Merge(page.Items...)
	s.items = DedupeAndSort(tx.items)
	s.index = indexOf(s.items)

	current := page.CurrentPage
	if current == 0 {
		current = requested
	}
	st := FeedState{
		Status:      Loaded,
		CurrentPage: current,
		TotalPages:  page.TotalPages,
		TotalItems:  page.TotalItems,
		HasNextPage: page.HasNextPage,
	}
	if refresh && s.state.CurrentPage > current {
		st.CurrentPage = s.state.CurrentPage
		st.HasNextPage = s.state.HasNextPage
	}
	s.state = st
	s.mu.Unlock()

	s.notify()
	return nil
}

// DedupeAndSort collapses items sharing an id, later entries winning, and orders the
// result by time descending then id descending.
func DedupeAndSort[T Entry[T]](items []T) []T {
	out := make([]T, 0, len(items))
	pos := make(map[string]int, len(items))
	for _, item := range items {
		if i, ok := pos[item.EntryID()]; ok {
			out[i] = item.Merge(out[i])
			continue
		}
		pos[item.EntryID()] = len(out)
		out = append(out, item)
	}
	slices.SortStableFunc(out, func(a, b T) int {
		if c := b.EntryTime().Compare(a.EntryTime()); c != 0 {
			return c
		}
		return cmp.Compare(b.EntryID(), a.EntryID())
	})
	return out
}

func indexOf[T Entry[T]](items []T) map[string]int {
	idx := make(map[string]int, len(items))
	for i, item := range items {
		idx[item.EntryID()] = i
	}
	return idx
}

func cloneAll[T Entry[T]](items []T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
