package feed

import "testing"

func TestUnreadTracker(t *testing.T) {
	var u UnreadTracker
	if prev := u.Set(2); prev != 0 {
		t.Errorf("Set() = %d; want 0", prev)
	}
	u.Decrement()
	u.Decrement()
	u.Decrement()
	if got := u.Count(); got != 0 {
		t.Errorf("Count() after decrements = %d; want 0", got)
	}
	u.Increment()
	if got := u.Count(); got != 1 {
		t.Errorf("Count() after Increment = %d; want 1", got)
	}
	if prev := u.Zero(); prev != 1 {
		t.Errorf("Zero() = %d; want 1", prev)
	}
	u.Set(-4)
	if got := u.Count(); got != 0 {
		t.Errorf("Count() after negative Set = %d; want 0", got)
	}
}

func TestCountUnread(t *testing.T) {
	items := []Notification{
		{ID: "n1", Read: false},
		{ID: "n2", Read: true},
		{ID: "n3", Read: false},
	}
	if got := CountUnread(items); got != 2 {
		t.Errorf("CountUnread() = %d; want 2", got)
	}
	if got := CountUnread(nil); got != 0 {
		t.Errorf("CountUnread(nil) = %d; want 0", got)
	}
}
