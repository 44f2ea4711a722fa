package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var errRemote = errors.New("something went wrong")

// testgateway implements both gateways with per-test funcs. A nil func fails the test
// when called.
type testgateway struct {
	T *testing.T

	fetchMessages      func(t *testing.T, q PageQuery) (Page[Message], error)
	sendMessage        func(t *testing.T, req SendRequest) (Message, error)
	reactToMessage     func(t *testing.T, req ReactionRequest) error
	notifyReaction     func(t *testing.T, n ReactionNotice) error
	fetchNotifications func(t *testing.T, q PageQuery) (Page[Notification], error)
	unreadCount        func(t *testing.T) (int, error)
	markRead           func(t *testing.T, id string) error
	markAllRead        func(t *testing.T) error

	mu    sync.Mutex
	calls map[string]int
}

func (g *testgateway) called(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = map[string]int{}
	}
	g.calls[name]++
	return nil
}

func (g *testgateway) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *testgateway) unexpected(name string) error {
	g.T.Errorf("Unexpected call to %s", name)
	return fmt.Errorf("unexpected call to %s", name)
}

func (g *testgateway) FetchMessages(_ context.Context, _ string, q PageQuery) (Page[Message], error) {
	g.called("FetchMessages")
	if g.fetchMessages == nil {
		return Page[Message]{}, g.unexpected("FetchMessages")
	}
	return g.fetchMessages(g.T, q)
}

func (g *testgateway) SendMessage(_ context.Context, req SendRequest) (Message, error) {
	g.called("SendMessage")
	if g.sendMessage == nil {
		return Message{}, g.unexpected("SendMessage")
	}
	return g.sendMessage(g.T, req)
}

func (g *testgateway) ReactToMessage(_ context.Context, req ReactionRequest) error {
	g.called("ReactToMessage")
	if g.reactToMessage == nil {
		return g.unexpected("ReactToMessage")
	}
	return g.reactToMessage(g.T, req)
}

func (g *testgateway) NotifyReaction(_ context.Context, n ReactionNotice) error {
	g.called("NotifyReaction")
	if g.notifyReaction == nil {
		return g.unexpected("NotifyReaction")
	}
	return g.notifyReaction(g.T, n)
}

func (g *testgateway) FetchNotifications(_ context.Context, _ string, q PageQuery) (Page[Notification], error) {
	g.called("FetchNotifications")
	if g.fetchNotifications == nil {
		return Page[Notification]{}, g.unexpected("FetchNotifications")
	}
	return g.fetchNotifications(g.T, q)
}

func (g *testgateway) UnreadCount(_ context.Context, _ string) (int, error) {
	g.called("UnreadCount")
	if g.unreadCount == nil {
		return 0, g.unexpected("UnreadCount")
	}
	return g.unreadCount(g.T)
}

func (g *testgateway) MarkNotificationRead(_ context.Context, _ string, id string) error {
	g.called("MarkNotificationRead")
	if g.markRead == nil {
		return g.unexpected("MarkNotificationRead")
	}
	return g.markRead(g.T, id)
}

func (g *testgateway) MarkAllNotificationsRead(_ context.Context, _ string) error {
	g.called("MarkAllNotificationsRead")
	if g.markAllRead == nil {
		return g.unexpected("MarkAllNotificationsRead")
	}
	return g.markAllRead(g.T)
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// at returns epoch plus n minutes.
func at(n int) time.Time {
	return epoch.Add(time.Duration(n) * time.Minute)
}

func msg(id string, minute int, sender string) Message {
	return Message{
		ID:             id,
		ConversationID: "c1",
		SenderID:       sender,
		Text:           "message " + id,
		CreatedAt:      at(minute),
		Status:         StatusSent,
		Reactions:      ReactionSet{},
	}
}

func note(id string, minute int, read bool) Notification {
	return Notification{
		ID:        id,
		UserID:    "u1",
		Type:      NotificationGeneral,
		Title:     "title " + id,
		CreatedAt: at(minute),
		Read:      read,
	}
}

func ids[T Entry[T]](items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.EntryID()
	}
	return out
}

// waitFor fails the test if ch does not receive within a second.
func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("Timed out waiting for %s", what)
	}
}
