package postgres

import (
	"time"

	"github.com/GetStream/duosync/feed"
	"github.com/uptrace/bun"
)

// Reactions to direct messages are stored with this target type.
const targetDirectMessage = "DIRECT_MESSAGE"

// A directMessage represents a message in the database.
type directMessage struct {
	bun.BaseModel `bun:"table:direct_messages"`

	ID                     string     `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	PartnershipID          string     `bun:"partnership_id,type:uuid,notnull"`
	SenderID               string     `bun:"sender_id,type:uuid,notnull"`
	TextContent            string     `bun:"text_content,nullzero"`
	EmojiContent           string     `bun:"emoji_content,nullzero"`
	ImageURL               string     `bun:"image_url,nullzero"`
	SentAt                 time.Time  `bun:"sent_at_utc,nullzero,default:now()"`
	ReadAt                 *time.Time `bun:"read_at_utc"`
	ReplyToActivityID      string     `bun:"reply_to_activity_id,nullzero"`
	ReplyToActivitySummary string     `bun:"reply_to_activity_summary,nullzero"`
	CreatedAt              time.Time  `bun:",nullzero,notnull,default:now()"`
	Reactions              []reaction `bun:"rel:has-many,join:id=direct_message_id"`
}

type reaction struct {
	bun.BaseModel `bun:"table:reactions"`

	ID              string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID          string    `bun:"user_id,type:uuid,notnull"`
	Emoji           string    `bun:",notnull"`
	TargetType      string    `bun:"target_type,notnull"`
	TargetID        string    `bun:"target_id,type:uuid,notnull"`
	DirectMessageID string    `bun:"direct_message_id,type:uuid,nullzero"`
	CreatedAt       time.Time `bun:",nullzero,notnull,default:now()"`
}

type user struct {
	bun.BaseModel `bun:"table:users"`

	ID       string `bun:",pk,type:uuid"`
	Name     string `bun:",nullzero"`
	Username string `bun:",nullzero"`
}

type notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID          string     `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	RecipientID string     `bun:"recipient_id,type:uuid,notnull"`
	ActorUserID string     `bun:"actor_user_id,type:uuid,nullzero"`
	Actor       *user      `bun:"rel:belongs-to,join:actor_user_id=id"`
	Type        string     `bun:",notnull"`
	Title       string     `bun:",nullzero"`
	Message     string     `bun:",nullzero"`
	LinkTo      string     `bun:"link_to,nullzero"`
	TargetType  string     `bun:"target_type,nullzero"`
	TargetID    string     `bun:"target_id,nullzero"`
	IsRead      bool       `bun:"is_read,notnull"`
	ReadAt      *time.Time `bun:"read_at_utc"`
	CreatedAt   time.Time  `bun:",nullzero,notnull,default:now()"`
}

func (m directMessage) FeedMessage() feed.Message {
	byKind := map[feed.ReactionKind][]string{}
	for _, r := range m.Reactions {
		kind, err := feed.ParseReactionKind(r.Emoji)
		if err != nil {
			// Reactions outside the fixed set are not shown.
			continue
		}
		byKind[kind] = append(byKind[kind], r.UserID)
	}

	out := feed.Message{
		ID:             m.ID,
		ConversationID: m.PartnershipID,
		SenderID:       m.SenderID,
		Text:           m.TextContent,
		ImageRef:       m.ImageURL,
		CreatedAt:      m.SentAt,
		Status:         feed.StatusSent,
		Reactions:      feed.NewReactionSet(byKind),
	}
	if out.Text == "" {
		out.Text = m.EmojiContent
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = m.CreatedAt
	}
	if m.ReadAt != nil {
		out.Status = feed.StatusRead
	}
	if m.ReplyToActivityID != "" {
		out.Reply = &feed.ReplyContext{
			ActivityID: m.ReplyToActivityID,
			Summary:    m.ReplyToActivitySummary,
		}
	}
	return out
}

func (n notification) FeedNotification() feed.Notification {
	out := feed.Notification{
		ID:        n.ID,
		UserID:    n.RecipientID,
		Type:      feed.ParseNotificationType(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.LinkTo,
		CreatedAt: n.CreatedAt,
		Read:      n.IsRead,
	}
	if n.Actor != nil {
		name := n.Actor.Name
		if name == "" {
			name = n.Actor.Username
		}
		out.Actor = &feed.Actor{ID: n.Actor.ID, Name: name}
	} else if n.ActorUserID != "" {
		out.Actor = &feed.Actor{ID: n.ActorUserID}
	}
	return out
}
