package httpgateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/GetStream/duosync/feed"
)

type pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	HasNextPage bool `json:"has_next_page"`
}

type reactionGroup struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type message struct {
	ID                     string          `json:"id"`
	PartnershipID          string          `json:"partnership_id,omitempty"`
	SenderID               string          `json:"sender_id"`
	ReceiverID             string          `json:"receiver_id,omitempty"`
	Text                   string          `json:"text,omitempty"`
	ImageURL               string          `json:"image_url,omitempty"`
	SentAt                 time.Time       `json:"sent_at"`
	Status                 string          `json:"status,omitempty"`
	ReplyToActivityID      string          `json:"reply_to_activity_id,omitempty"`
	ReplyToActivitySummary string          `json:"reply_to_activity_summary,omitempty"`
	Reactions              []reactionGroup `json:"reactions,omitempty"`
}

func (m message) FeedMessage() feed.Message {
	byKind := map[feed.ReactionKind][]string{}
	for _, g := range m.Reactions {
		kind, err := feed.ParseReactionKind(g.Emoji)
		if err != nil {
			continue
		}
		byKind[kind] = append(byKind[kind], g.Users...)
	}
	out := feed.Message{
		ID:             m.ID,
		ConversationID: m.PartnershipID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Text:           m.Text,
		ImageRef:       m.ImageURL,
		CreatedAt:      m.SentAt,
		Status:         feed.DeliveryStatus(m.Status),
		Reactions:      feed.NewReactionSet(byKind),
	}
	if m.ReplyToActivityID != "" {
		out.Reply = &feed.ReplyContext{ActivityID: m.ReplyToActivityID, Summary: m.ReplyToActivitySummary}
	}
	return out
}

type actor struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Type        string    `json:"type"`
	Actor       *actor    `json:"actor,omitempty"`
	Title       string    `json:"title,omitempty"`
	Message     string    `json:"message,omitempty"`
	LinkTo      string    `json:"link_to,omitempty"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
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
		out.Actor = &feed.Actor{ID: n.Actor.ID, Name: n.Actor.Name}
	}
	return out
}

func pageQuery(q feed.PageQuery) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(max(q.Page, 1)))
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.UnreadOnly {
		v.Set("is_read", "false")
	}
	return v
}

func (p pagination) page(q feed.PageQuery) (cur, total, items int, next bool) {
	cur = p.CurrentPage
	if cur == 0 {
		cur = max(q.Page, 1)
	}
	return cur, p.TotalPages, p.TotalItems, p.HasNextPage
}

// FetchNotifications returns one page of the user's notifications.
func (c *Client) FetchNotifications(ctx context.Context, userID string, q feed.PageQuery) (feed.Page[feed.Notification], error) {
	var resp struct {
		Notifications []notification `json:"notifications"`
		Pagination    pagination     `json:"pagination"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/notifications", pageQuery(q), nil, &resp); err != nil {
		return feed.Page[feed.Notification]{}, err
	}
	out := feed.Page[feed.Notification]{Items: make([]feed.Notification, len(resp.Notifications))}
	for i, n := range resp.Notifications {
		out.Items[i] = n.FeedNotification()
	}
	out.CurrentPage, out.TotalPages, out.TotalItems, out.HasNextPage = resp.Pagination.page(q)
	return out, nil
}

// UnreadCount returns the user's unread notification count.
func (c *Client) UnreadCount(ctx context.Context, userID string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/notifications/unread-count", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil)
}

// MarkAllNotificationsRead marks every notification read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return c.doJSON(ctx, http.MethodPost, "/notifications/mark-all-read", nil, nil, nil)
}

// FetchMessages returns one page of a conversation.
func (c *Client) FetchMessages(ctx context.Context, conversationID string, q feed.PageQuery) (feed.Page[feed.Message], error) {
	var resp struct {
		Messages   []message  `json:"messages"`
		Pagination pagination `json:"pagination"`
	}
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, pageQuery(q), nil, &resp); err != nil {
		return feed.Page[feed.Message]{}, err
	}
	out := feed.Page[feed.Message]{Items: make([]feed.Message, len(resp.Messages))}
	for i, m := range resp.Messages {
		out.Items[i] = m.FeedMessage()
	}
	out.CurrentPage, out.TotalPages, out.TotalItems, out.HasNextPage = resp.Pagination.page(q)
	return out, nil
}

type sendRequest struct {
	ReceiverID             string `json:"receiver_id"`
	Text                   string `json:"text,omitempty"`
	ImageURL               string `json:"image_url,omitempty"`
	ReplyToActivityID      string `json:"reply_to_activity_id,omitempty"`
	ReplyToActivitySummary string `json:"reply_to_activity_summary,omitempty"`
}

// SendMessage submits a message and returns the server's copy.
func (c *Client) SendMessage(ctx context.Context, req feed.SendRequest) (feed.Message, error) {
	body := sendRequest{
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
		ImageURL:   req.ImageRef,
	}
	if req.Reply != nil {
		body.ReplyToActivityID = req.Reply.ActivityID
		body.ReplyToActivitySummary = req.Reply.Summary
	}
	var resp struct {
		SentMessage message `json:"sent_message"`
	}
	path := "/conversations/" + url.PathEscape(req.ConversationID) + "/messages"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return feed.Message{}, err
	}
	m := resp.SentMessage.FeedMessage()
	if m.ConversationID == "" {
		m.ConversationID = req.ConversationID
	}
	return m, nil
}

// ReactToMessage puts or deletes the user's reaction.
func (c *Client) ReactToMessage(ctx context.Context, req feed.ReactionRequest) error {
	method := http.MethodPut
	if !req.Active {
		method = http.MethodDelete
	}
	path := "/messages/" + url.PathEscape(req.MessageID) + "/reactions/" + url.PathEscape(string(req.Kind))
	return c.doJSON(ctx, method, path, nil, nil, nil)
}

type reactionNotice struct {
	RecipientID string `json:"recipient_id"`
	ActorID     string `json:"actor_id"`
	Emoji       string `json:"emoji"`
	ContentType string `json:"content_type"`
}

// NotifyReaction asks the backend to notify the message author of a reaction.
func (c *Client) NotifyReaction(ctx context.Context, n feed.ReactionNotice) error {
	body := reactionNotice{
		RecipientID: n.RecipientID,
		ActorID:     n.ActorID,
		Emoji:       n.Kind.Emoji(),
		ContentType: n.ContentType,
	}
	return c.doJSON(ctx, http.MethodPost, "/messages/"+url.PathEscape(n.MessageID)+"/reactions/notify", nil, body, nil)
}
