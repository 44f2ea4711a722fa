package feed

import "context"

// SendRequest is a message submitted to the backend.
type SendRequest struct {
	ConversationID string
	SenderID       string
	ReceiverID     string
	Text           string
	ImageRef       string
	Reply          *ReplyContext
}

// ReactionRequest sets whether UserID's reaction of Kind is present on a message.
// Carrying the desired state rather than a toggle keeps retries idempotent.
type ReactionRequest struct {
	ConversationID string
	MessageID      string
	Kind           ReactionKind
	UserID         string
	Active         bool
}

// ReactionNotice tells the author of a message that their partner reacted to it.
type ReactionNotice struct {
	MessageID   string
	RecipientID string
	ActorID     string
	Kind        ReactionKind
	// ContentType is "image" or "message_with_image".
	ContentType string
}

// MessageGateway is the backend as seen by a Conversation.
type MessageGateway interface {
	FetchMessages(ctx context.Context, conversationID string, q PageQuery) (Page[Message], error)
	SendMessage(ctx context.Context, req SendRequest) (Message, error)
	ReactToMessage(ctx context.Context, req ReactionRequest) error
	NotifyReaction(ctx context.Context, n ReactionNotice) error
}

// NotificationGateway is the backend as seen by an Inbox.
type NotificationGateway interface {
	FetchNotifications(ctx context.Context, userID string, q PageQuery) (Page[Notification], error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// MessageCache keeps the last known messages of a conversation for a warm start.
type MessageCache interface {
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	SaveMessages(ctx context.Context, conversationID string, msgs ...Message) error
}

// NotificationCache keeps the last known notifications of a user for a warm start.
type NotificationCache interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	SaveNotifications(ctx context.Context, userID string, ns ...Notification) error
}
