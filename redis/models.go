package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/GetStream/duosync/feed"
)

// A message is the hash stored for each cached message.
type message struct {
	ID             string `redis:"id"`
	ConversationID string `redis:"conversation_id"`
	SenderID       string `redis:"sender_id"`
	ReceiverID     string `redis:"receiver_id"`
	Text           string `redis:"text"`
	ImageRef       string `redis:"image_ref"`
	CreatedAt      int64  `redis:"created_at"`
	Status         string `redis:"status"`
	Reactions      string `redis:"reactions"`
	ReplyTo        string `redis:"reply_to"`
	ReplySummary   string `redis:"reply_summary"`
}

// A notification is the hash stored for each cached notification.
type notification struct {
	ID        string `redis:"id"`
	UserID    string `redis:"user_id"`
	Type      string `redis:"type"`
	ActorID   string `redis:"actor_id"`
	ActorName string `redis:"actor_name"`
	Title     string `redis:"title"`
	Message   string `redis:"message"`
	Link      string `redis:"link"`
	CreatedAt int64  `redis:"created_at"`
	Read      bool   `redis:"read"`
}

func newMessage(m feed.Message) (*message, error) {
	reactions, err := json.Marshal(m.Reactions)
	if err != nil {
		return nil, fmt.Errorf("marshal reactions: %w", err)
	}
	out := &message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Text:           m.Text,
		ImageRef:       m.ImageRef,
		CreatedAt:      m.CreatedAt.UnixNano(),
		Status:         string(m.Status),
		Reactions:      string(reactions),
	}
	if m.Reply != nil {
		out.ReplyTo = m.Reply.ActivityID
		out.ReplySummary = m.Reply.Summary
	}
	return out, nil
}

func (m message) FeedMessage() (feed.Message, error) {
	out := feed.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Text:           m.Text,
		ImageRef:       m.ImageRef,
		CreatedAt:      time.Unix(0, m.CreatedAt).UTC(),
		Status:         feed.DeliveryStatus(m.Status),
		Reactions:      feed.ReactionSet{},
	}
	if m.Reactions != "" {
		if err := json.Unmarshal([]byte(m.Reactions), &out.Reactions); err != nil {
			return feed.Message{}, fmt.Errorf("unmarshal reactions of %s: %w", m.ID, err)
		}
		if out.Reactions == nil {
			out.Reactions = feed.ReactionSet{}
		}
	}
	if m.ReplyTo != "" {
		out.Reply = &feed.ReplyContext{ActivityID: m.ReplyTo, Summary: m.ReplySummary}
	}
	return out, nil
}

func newNotification(n feed.Notification) *notification {
	out := &notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		CreatedAt: n.CreatedAt.UnixNano(),
		Read:      n.Read,
	}
	if n.Actor != nil {
		out.ActorID = n.Actor.ID
		out.ActorName = n.Actor.Name
	}
	return out
}

func (n notification) FeedNotification() feed.Notification {
	out := feed.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      feed.ParseNotificationType(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		CreatedAt: time.Unix(0, n.CreatedAt).UTC(),
		Read:      n.Read,
	}
	if n.ActorID != "" || n.ActorName != "" {
		out.Actor = &feed.Actor{ID: n.ActorID, Name: n.ActorName}
	}
	return out
}
