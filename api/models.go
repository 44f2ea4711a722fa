package api

import (
	"time"

	"github.com/GetStream/duosync/feed"
	"github.com/dustin/go-humanize"
)

// A Message is a conversation message as shown to the UI.
type Message struct {
	ID            string              `json:"id"`
	SenderID      string              `json:"sender_id"`
	Text          string              `json:"text"`
	ImageRef      string              `json:"image_ref,omitempty"`
	Status        feed.DeliveryStatus `json:"status"`
	Mine          bool                `json:"mine"`
	CreatedAt     time.Time           `json:"created_at"`
	Age           string              `json:"age"`
	Reply         *feed.ReplyContext  `json:"reply,omitempty"`
	Reactions     []Reaction          `json:"reactions"`
	ReactionCount int                 `json:"reaction_count"`
}

// A Reaction is the aggregate of one reaction kind on a message.
type Reaction struct {
	Type  string   `json:"type"`
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
	Mine  bool     `json:"mine"`
}

// A Notification is an inbox entry as shown to the UI.
type Notification struct {
	ID        string                `json:"id"`
	Type      feed.NotificationType `json:"type"`
	Actor     string                `json:"actor,omitempty"`
	Title     string                `json:"title,omitempty"`
	Message   string                `json:"message,omitempty"`
	Link      string                `json:"link,omitempty"`
	Read      bool                  `json:"read"`
	CreatedAt time.Time             `json:"created_at"`
	Age       string                `json:"age"`
}

// State is the loading state of a feed.
type State struct {
	Status      feed.LoadStatus `json:"status"`
	CurrentPage int             `json:"current_page"`
	TotalPages  int             `json:"total_pages"`
	HasNextPage bool            `json:"has_next_page"`
	Error       string          `json:"error,omitempty"`
}

// A Pending is a mutation awaiting the gateway.
type Pending struct {
	ID        string            `json:"id"`
	Kind      feed.MutationKind `json:"kind"`
	Target    string            `json:"target"`
	AppliedAt time.Time         `json:"applied_at"`
}

func age(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.Sub(t) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func newMessage(m feed.Message, userID string, now time.Time) Message {
	out := Message{
		ID:            m.ID,
		SenderID:      m.SenderID,
		Text:          m.Text,
		ImageRef:      m.ImageRef,
		Status:        m.Status,
		Mine:          m.SenderID == userID,
		CreatedAt:     m.CreatedAt,
		Age:           age(m.CreatedAt, now),
		Reply:         m.Reply,
		Reactions:     []Reaction{},
		ReactionCount: m.Reactions.Total(),
	}
	for _, kind := range feed.ReactionKinds {
		r, ok := m.Reactions[kind]
		if !ok {
			continue
		}
		out.Reactions = append(out.Reactions, Reaction{
			Type:  string(kind),
			Emoji: kind.Emoji(),
			Count: r.Count,
			Users: r.Users,
			Mine:  m.Reactions.Has(kind, userID),
		})
	}
	return out
}

func newNotification(n feed.Notification, now time.Time) Notification {
	out := Notification{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
		Age:       age(n.CreatedAt, now),
	}
	if n.Actor != nil {
		out.Actor = n.Actor.Name
	}
	return out
}

func newState(s feed.FeedState) State {
	out := State{
		Status:      s.Status,
		CurrentPage: s.CurrentPage,
		TotalPages:  s.TotalPages,
		HasNextPage: s.HasNextPage,
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}
