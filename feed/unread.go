package feed

import "sync"

// UnreadTracker holds the unread notification count. The count never goes below zero.
type UnreadTracker struct {
	mu    sync.Mutex
	count int
}

// Count returns the current count.
func (u *UnreadTracker) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count
}

// Set replaces the count with an authoritative value and returns the previous one.
func (u *UnreadTracker) Set(n int) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	prev := u.count
	u.count = max(n, 0)
	return prev
}

// Decrement lowers the count by one.
func (u *UnreadTracker) Decrement() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.count = max(u.count-1, 0)
}

// Increment raises the count by one.
func (u *UnreadTracker) Increment() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.count++
}

// Zero clears the count and returns the previous value.
func (u *UnreadTracker) Zero() int {
	return u.Set(0)
}

// CountUnread counts the unread notifications in items.
func CountUnread(items []Notification) int {
	n := 0
	for _, item := range items {
		if !item.Read {
			n++
		}
	}
	return n
}
