package feed

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTextLength is the longest message text the backend accepts, in runes.
const MaxTextLength = 1000

// TempIDPrefix marks ids generated locally before the server confirmed a message.
const TempIDPrefix = "temp-"

// IsTempID reports whether id was generated locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// A DeliveryStatus is the delivery state of a message.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

func (s DeliveryStatus) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusSent:
		return 2
	case StatusDelivered:
		return 3
	case StatusRead:
		return 4
	}
	return 0
}

// Advance returns the status after moving to next. Statuses never move backwards;
// failed can only be reached from pending and is terminal.
func (s DeliveryStatus) Advance(next DeliveryStatus) DeliveryStatus {
	if next == StatusFailed {
		if s == StatusPending {
			return StatusFailed
		}
		return s
	}
	if s == StatusFailed {
		return s
	}
	if next.rank() > s.rank() {
		return next
	}
	return s
}

// ReplyContext points a message at the activity it replies to.
type ReplyContext struct {
	ActivityID string `json:"activity_id"`
	Summary    string `json:"summary,omitempty"`
}

// A Message is a chat message between the two partners.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"sender_id"`
	ReceiverID     string         `json:"receiver_id,omitempty"`
	Text           string         `json:"text,omitempty"`
	ImageRef       string         `json:"image_ref,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Status         DeliveryStatus `json:"status"`
	Reactions      ReactionSet    `json:"reactions"`
	Reply          *ReplyContext  `json:"reply,omitempty"`
}

func (m Message) EntryID() string      { return m.ID }
func (m Message) EntryTime() time.Time { return m.CreatedAt }

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.Reactions = m.Reactions.Clone()
	if m.Reply != nil {
		r := *m.Reply
		m.Reply = &r
	}
	return m
}

// Merge returns m reconciled against the copy already held locally.
func (m Message) Merge(prev Message) Message {
	out := m.Clone()
	out.Status = prev.Status.Advance(m.Status)
	if out.Status == "" {
		out.Status = StatusSent
	}
	if out.Reply == nil && prev.Reply != nil {
		r := *prev.Reply
		out.Reply = &r
	}
	if out.ImageRef == "" {
		out.ImageRef = prev.ImageRef
	}
	return out
}

// Validate checks that the message can be sent.
func (m Message) Validate() error {
	return validateContent(m.Text, m.ImageRef)
}

func validateContent(text, imageRef string) error {
	if strings.TrimSpace(text) == "" && imageRef == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return fmt.Errorf("%w: %d runes", ErrMessageTooLong, utf8.RuneCountInString(text))
	}
	return nil
}

// A NotificationType classifies a notification.
type NotificationType string

const (
	NotificationGeneral             NotificationType = "general"
	NotificationGoalProgress        NotificationType = "goal_progress"
	NotificationPartnerActivity     NotificationType = "partner_activity"
	NotificationVerificationRequest NotificationType = "verification_request"
	NotificationSystemAlert         NotificationType = "system_alert"
	NotificationNewMessage          NotificationType = "new_message"
	NotificationPartnerRequest      NotificationType = "partner_request"
	NotificationPartnerCheckIn      NotificationType = "partner_check_in"
	NotificationReaction            NotificationType = "reaction"
)

// Valid reports whether t is a known type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationGeneral, NotificationGoalProgress, NotificationPartnerActivity,
		NotificationVerificationRequest, NotificationSystemAlert, NotificationNewMessage,
		NotificationPartnerRequest, NotificationPartnerCheckIn, NotificationReaction:
		return true
	}
	return false
}

// ParseNotificationType maps unknown values to NotificationGeneral.
func ParseNotificationType(s string) NotificationType {
	t := NotificationType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return NotificationGeneral
	}
	return t
}

// Actor is the user a notification is about.
type Actor struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// A Notification belongs to exactly one recipient.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Actor     *Actor           `json:"actor,omitempty"`
	Title     string           `json:"title,omitempty"`
	Message   string           `json:"message,omitempty"`
	Link      string           `json:"link,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Read      bool             `json:"read"`
}

func (n Notification) EntryID() string      { return n.ID }
func (n Notification) EntryTime() time.Time { return n.CreatedAt }

// Clone returns a deep copy of the notification.
func (n Notification) Clone() Notification {
	if n.Actor != nil {
		a := *n.Actor
		n.Actor = &a
	}
	return n
}

// Merge keeps read monotonic: once read locally, a stale server copy cannot unread it.
func (n Notification) Merge(prev Notification) Notification {
	out := n.Clone()
	out.Read = n.Read || prev.Read
	return out
}
