package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GetStream/duosync/feed"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Postgres talks to the backend database directly. It implements
// feed.MessageGateway and feed.NotificationGateway.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// Close closes the database.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// FetchMessages returns one page of a conversation, newest first.
func (pg *Postgres) FetchMessages(ctx context.Context, conversationID string, q feed.PageQuery) (feed.Page[feed.Message], error) {
	var msgs []directMessage
	total, err := pg.bun.NewSelect().
		Model(&msgs).
		Relation("Reactions", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("target_type = ?", targetDirectMessage)
		}).
		Where("partnership_id = ?", conversationID).
		Order("sent_at_utc DESC", "id DESC").
		Limit(q.Limit).
		Offset(offset(q)).
		ScanAndCount(ctx)
	if err != nil {
		return feed.Page[feed.Message]{}, fmt.Errorf("scan: %w", err)
	}

	out := make([]feed.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.FeedMessage()
	}
	return pageOf(out, q, total), nil
}

// SendMessage inserts a message. The returned message holds auto generated
// fields, such as the message id.
func (pg *Postgres) SendMessage(ctx context.Context, req feed.SendRequest) (feed.Message, error) {
	m := &directMessage{
		PartnershipID: req.ConversationID,
		SenderID:      req.SenderID,
		TextContent:   req.Text,
		ImageURL:      req.ImageRef,
	}
	if req.Reply != nil {
		m.ReplyToActivityID = req.Reply.ActivityID
		m.ReplyToActivitySummary = req.Reply.Summary
	}
	if _, err := pg.bun.NewInsert().Model(m).Returning("*").Exec(ctx); err != nil {
		return feed.Message{}, fmt.Errorf("insert: %w", err)
	}
	out := m.FeedMessage()
	out.ReceiverID = req.ReceiverID
	return out, nil
}

// ReactToMessage adds or removes a reaction. Both directions succeed when the
// reaction is already in the requested state.
func (pg *Postgres) ReactToMessage(ctx context.Context, req feed.ReactionRequest) error {
	if !req.Active {
		_, err := pg.bun.NewDelete().
			Model((*reaction)(nil)).
			Where("user_id = ?", req.UserID).
			Where("target_type = ?", targetDirectMessage).
			Where("target_id = ?", req.MessageID).
			Where("emoji IN (?)", bun.In([]string{string(req.Kind), req.Kind.Emoji()})).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		return nil
	}

	r := &reaction{
		UserID:          req.UserID,
		Emoji:           string(req.Kind),
		TargetType:      targetDirectMessage,
		TargetID:        req.MessageID,
		DirectMessageID: req.MessageID,
	}
	_, err := pg.bun.NewInsert().
		Model(r).
		On("CONFLICT (user_id, target_type, target_id, emoji) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// NotifyReaction stores a reaction notification for the author of the message.
func (pg *Postgres) NotifyReaction(ctx context.Context, n feed.ReactionNotice) error {
	what := "photo"
	if n.ContentType == "message_with_image" {
		what = "message"
	}
	nm := &notification{
		RecipientID: n.RecipientID,
		ActorUserID: n.ActorID,
		Type:        string(feed.NotificationReaction),
		Title:       "New reaction",
		Message:     fmt.Sprintf("Your partner reacted %s to your %s", n.Kind.Emoji(), what),
		TargetType:  "direct_message",
		TargetID:    n.MessageID,
	}
	if _, err := pg.bun.NewInsert().Model(nm).Exec(ctx); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// FetchNotifications returns one page of a user's notifications, newest first.
func (pg *Postgres) FetchNotifications(ctx context.Context, userID string, q feed.PageQuery) (feed.Page[feed.Notification], error) {
	var ns []notification
	sel := pg.bun.NewSelect().
		Model(&ns).
		Relation("Actor").
		Where("notification.recipient_id = ?", userID).
		Order("notification.created_at DESC", "notification.id DESC").
		Limit(q.Limit).
		Offset(offset(q))
	if q.UnreadOnly {
		sel = sel.Where("notification.is_read = FALSE")
	}
	total, err := sel.ScanAndCount(ctx)
	if err != nil {
		return feed.Page[feed.Notification]{}, fmt.Errorf("scan: %w", err)
	}

	out := make([]feed.Notification, len(ns))
	for i, n := range ns {
		out[i] = n.FeedNotification()
	}
	return pageOf(out, q, total), nil
}

// UnreadCount counts the user's unread notifications.
func (pg *Postgres) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := pg.bun.NewSelect().
		Model((*notification)(nil)).
		Where("recipient_id = ?", userID).
		Where("is_read = FALSE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks one notification read. Marking a read notification
// again is not an error.
func (pg *Postgres) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := pg.bun.NewUpdate().
		Model((*notification)(nil)).
		Set("is_read = TRUE").
		Set("read_at_utc = COALESCE(read_at_utc, ?)", time.Now().UTC()).
		Where("id = ?", id).
		Where("recipient_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("notification %s: %w", id, feed.ErrNotFound)
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of the user read.
func (pg *Postgres) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := pg.bun.NewUpdate().
		Model((*notification)(nil)).
		Set("is_read = TRUE").
		Set("read_at_utc = ?", time.Now().UTC()).
		Where("recipient_id = ?", userID).
		Where("is_read = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

func offset(q feed.PageQuery) int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

func pageOf[T any](items []T, q feed.PageQuery, total int) feed.Page[T] {
	pages := 0
	if q.Limit > 0 {
		pages = (total + q.Limit - 1) / q.Limit
	}
	return feed.Page[T]{
		Items:       items,
		CurrentPage: max(q.Page, 1),
		TotalPages:  pages,
		TotalItems:  total,
		HasNextPage: q.Page < pages,
	}
}
