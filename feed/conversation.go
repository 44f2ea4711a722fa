package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConversationConfig configures a Conversation.
type ConversationConfig struct {
	ConversationID string
	UserID         string
	PartnerID      string
	PageSize       int

	Gateway MessageGateway
	// Cache is optional.
	Cache MessageCache
	// Engine is optional; a private engine is created when nil.
	Engine  *Engine
	Logger  *slog.Logger
	Metrics *Metrics
}

// errRetarget is returned from Apply when the target was confirmed under a new id
// while the mutation waited for its turn.
var errRetarget = errors.New("target renamed")

const maxRetarget = 3

// Conversation is the message view of one partner conversation.
type Conversation struct {
	ID        string
	UserID    string
	PartnerID string
	Logger    *slog.Logger

	gateway  MessageGateway
	cache    MessageCache
	engine   *Engine
	store    *Store[Message]
	pager    *Pager[Message]
	composer Composer

	mu      sync.Mutex
	aliases map[string]string

	now func() time.Time
}

// NewConversation returns an empty, unloaded conversation view.
func NewConversation(cfg ConversationConfig) *Conversation {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("conversation", cfg.ConversationID)
	engine := cfg.Engine
	if engine == nil {
		engine = NewEngine(logger, cfg.Metrics)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}

	c := &Conversation{
		ID:        cfg.ConversationID,
		UserID:    cfg.UserID,
		PartnerID: cfg.PartnerID,
		Logger:    logger,
		gateway:   cfg.Gateway,
		cache:     cfg.Cache,
		engine:    engine,
		store:     NewStore[Message](),
		aliases:   map[string]string{},
		now:       time.Now,
	}
	c.pager = NewPager("messages", c.store, c.fetch, PageQuery{Limit: cfg.PageSize}, logger)
	c.pager.Metrics = cfg.Metrics
	return c
}

func (c *Conversation) fetch(ctx context.Context, q PageQuery) (Page[Message], error) {
	page, err := c.gateway.FetchMessages(ctx, c.ID, q)
	if err != nil {
		return Page[Message]{}, err
	}
	for i := range page.Items {
		page.Items[i] = c.normalize(page.Items[i])
	}
	c.save(ctx, page.Items...)
	return page, nil
}

// normalize fills in what the backend leaves out of a stored message.
func (c *Conversation) normalize(m Message) Message {
	if m.ConversationID == "" {
		m.ConversationID = c.ID
	}
	if m.Status == "" || m.Status == StatusPending {
		m.Status = StatusSent
	}
	if m.Reactions == nil {
		m.Reactions = ReactionSet{}
	}
	return m
}

func (c *Conversation) save(ctx context.Context, msgs ...Message) {
	if c.cache == nil || len(msgs) == 0 {
		return
	}
	if err := c.cache.SaveMessages(ctx, c.ID, msgs...); err != nil {
		c.Logger.Warn("Could not cache messages", "count", len(msgs), "error", err.Error())
	}
}

// Load shows cached messages, if any, and then fetches the first page.
func (c *Conversation) Load(ctx context.Context) error {
	if c.cache != nil && c.store.Len() == 0 {
		msgs, err := c.cache.ListMessages(ctx, c.ID, c.pager.Limit)
		switch {
		case err != nil:
			c.Logger.Warn("Could not read cached messages", "error", err.Error())
		case len(msgs) > 0:
			if err := c.store.Merge(msgs); err != nil {
				return err
			}
			c.Logger.Debug("Restored cached messages", "count", len(msgs))
		}
	}
	_, err := c.pager.LoadFirst(ctx)
	return err
}

// LoadOlder fetches the next page of older messages.
func (c *Conversation) LoadOlder(ctx context.Context) error {
	_, err := c.pager.LoadNext(ctx)
	return err
}

// Refresh fetches the newest page to pick up messages that arrived since the last load.
func (c *Conversation) Refresh(ctx context.Context) error {
	_, err := c.pager.Refresh(ctx)
	return err
}

// Composer returns the conversation's input state.
func (c *Conversation) Composer() *Composer { return &c.composer }

// SendComposed sends the composer's draft. The composer is cleared before the remote
// call; an invalid draft is left in place and nothing is sent.
func (c *Conversation) SendComposed(ctx context.Context) (Message, error) {
	d, err := c.composer.Take()
	if err != nil {
		return Message{}, err
	}
	return c.Send(ctx, d)
}

// Send shows d at the head of the conversation as pending and submits it. On failure the
// message stays in place marked failed.
func (c *Conversation) Send(ctx context.Context, d Draft) (Message, error) {
	if err := d.Validate(); err != nil {
		return Message{}, err
	}
	d = d.clone()
	local := Message{
		ID:             TempIDPrefix + uuid.NewString(),
		ConversationID: c.ID,
		SenderID:       c.UserID,
		ReceiverID:     c.PartnerID,
		Text:           d.Text,
		ImageRef:       d.ImageRef,
		CreatedAt:      c.now(),
		Status:         StatusPending,
		Reactions:      ReactionSet{},
		Reply:          d.Reply,
	}

	var sent Message
	err := Run(ctx, c.engine, Mutation[Message]{
		Kind:   KindSend,
		Target: local.ID,
		Apply: func() (Message, error) {
			return local, c.store.Insert(local)
		},
		Remote: func(ctx context.Context) error {
			var err error
			sent, err = c.gateway.SendMessage(ctx, SendRequest{
				ConversationID: c.ID,
				SenderID:       c.UserID,
				ReceiverID:     c.PartnerID,
				Text:           d.Text,
				ImageRef:       d.ImageRef,
				Reply:          d.Reply,
			})
			return err
		},
		Confirm: func(local Message) {
			sent = c.confirmSend(ctx, local, sent)
		},
		Rollback: func(local Message, _ error) {
			_, err := c.store.UpdateByID(local.ID, func(m *Message) {
				m.Status = m.Status.Advance(StatusFailed)
			})
			if err != nil && !errors.Is(err, ErrClosed) {
				c.Logger.Error("Could not mark message failed", "id", local.ID, "error", err.Error())
			}
		},
	})
	if err != nil {
		if m, ok := c.store.Get(local.ID); ok {
			return m, err
		}
		return local, err
	}
	return sent, nil
}

// confirmSend swaps the pending copy for the server's, keeping anything attached to the
// pending copy in the meantime.
func (c *Conversation) confirmSend(ctx context.Context, local, sent Message) Message {
	sent = c.normalize(sent)
	if sent.ID == "" {
		sent.ID = local.ID
	}
	if sent.CreatedAt.IsZero() {
		sent.CreatedAt = local.CreatedAt
	}

	err := c.store.Mutate(func(tx *Tx[Message]) error {
		if prev, ok := tx.Get(local.ID); ok {
			sent.Reactions = sent.Reactions.Union(prev.Reactions)
			if sent.Reply == nil {
				sent.Reply = prev.Reply
			}
			if sent.ImageRef == "" {
				sent.ImageRef = prev.ImageRef
			}
			tx.Remove(local.ID)
		}
		tx.Merge(sent)
		return nil
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		c.Logger.Error("Could not reconcile sent message", "id", local.ID, "error", err.Error())
	}

	c.mu.Lock()
	c.aliases[local.ID] = sent.ID
	c.mu.Unlock()

	c.save(ctx, sent)
	c.Logger.Info("Sent message", "temp_id", local.ID, "id", sent.ID)
	return sent
}

// Retry resends a failed message. The failed copy is replaced by a new pending one.
func (c *Conversation) Retry(ctx context.Context, id string) (Message, error) {
	m, ok := c.store.Get(id)
	if !ok {
		return Message{}, fmt.Errorf("retry %s: %w", id, ErrNotFound)
	}
	if m.Status != StatusFailed {
		return Message{}, fmt.Errorf("retry %s: %w: %s", id, ErrNotFailed, m.Status)
	}
	if _, err := c.store.RemoveByID(id); err != nil {
		return Message{}, err
	}
	return c.Send(ctx, Draft{Text: m.Text, ImageRef: m.ImageRef, Reply: m.Reply})
}

// Dismiss removes a failed message from the conversation.
func (c *Conversation) Dismiss(id string) error {
	m, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("dismiss %s: %w", id, ErrNotFound)
	}
	if m.Status != StatusFailed {
		return fmt.Errorf("dismiss %s: %w: %s", id, ErrNotFailed, m.Status)
	}
	_, err := c.store.RemoveByID(id)
	return err
}

func (c *Conversation) resolve(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < maxRetarget; i++ {
		next, ok := c.aliases[id]
		if !ok {
			break
		}
		id = next
	}
	return id
}

type reactionSnapshot struct {
	message Message
	active  bool
}

// React toggles the user's reaction of kind on a message. A reaction to a message whose
// send is still in flight waits for it and then applies to the confirmed message.
func (c *Conversation) React(ctx context.Context, messageID string, kind ReactionKind) error {
	if !kind.Valid() {
		return fmt.Errorf("react: unknown reaction %q", kind)
	}
	for i := 0; i < maxRetarget; i++ {
		err := c.react(ctx, c.resolve(messageID), messageID, kind)
		if !errors.Is(err, errRetarget) {
			return err
		}
	}
	return fmt.Errorf("react %s: %w", messageID, ErrNotFound)
}

func (c *Conversation) react(ctx context.Context, target, requested string, kind ReactionKind) error {
	var snap reactionSnapshot
	return Run(ctx, c.engine, Mutation[reactionSnapshot]{
		Kind:   KindReact,
		Target: target,
		Apply: func() (reactionSnapshot, error) {
			if c.resolve(requested) != target {
				return snap, errRetarget
			}
			err := c.store.Mutate(func(tx *Tx[Message]) error {
				m, ok := tx.Get(target)
				if !ok {
					return fmt.Errorf("react %s: %w", target, ErrNotFound)
				}
				if IsTempID(m.ID) || m.Status == StatusFailed {
					return fmt.Errorf("react %s: %w", target, ErrMessageNotSent)
				}
				snap.message = m.Clone()
				m.Reactions = m.Reactions.Toggle(kind, c.UserID)
				snap.active = m.Reactions.Has(kind, c.UserID)
				tx.Put(m)
				return nil
			})
			return snap, err
		},
		Remote: func(ctx context.Context) error {
			return c.gateway.ReactToMessage(ctx, ReactionRequest{
				ConversationID: c.ID,
				MessageID:      target,
				Kind:           kind,
				UserID:         c.UserID,
				Active:         snap.active,
			})
		},
		Confirm: func(s reactionSnapshot) {
			// A page merged while the call was in flight may carry the old reaction set.
			_, err := c.store.UpdateByID(target, func(m *Message) {
				if m.Reactions.Has(kind, c.UserID) != s.active {
					m.Reactions = m.Reactions.Toggle(kind, c.UserID)
				}
			})
			if err != nil && !errors.Is(err, ErrClosed) {
				c.Logger.Error("Could not reconcile reaction", "id", target, "error", err.Error())
			}
			if m, ok := c.store.Get(target); ok {
				c.save(ctx, m)
			}
			if s.active && s.message.ImageRef != "" && s.message.SenderID != c.UserID {
				c.notifyReaction(ctx, s.message, kind)
			}
		},
		Rollback: func(s reactionSnapshot, _ error) {
			_, err := c.store.UpdateByID(target, func(m *Message) {
				m.Reactions = s.message.Reactions.Clone()
			})
			if err != nil && !errors.Is(err, ErrClosed) {
				c.Logger.Error("Could not revert reaction", "id", target, "error", err.Error())
			}
		},
	})
}

func (c *Conversation) notifyReaction(ctx context.Context, m Message, kind ReactionKind) {
	content := "image"
	if m.Text != "" {
		content = "message_with_image"
	}
	err := c.gateway.NotifyReaction(ctx, ReactionNotice{
		MessageID:   m.ID,
		RecipientID: m.SenderID,
		ActorID:     c.UserID,
		Kind:        kind,
		ContentType: content,
	})
	if err != nil {
		c.Logger.Warn("Could not notify partner of reaction", "id", m.ID, "reaction", kind, "error", err.Error())
	}
}

// Messages returns the loaded messages, newest first.
func (c *Conversation) Messages() []Message { return c.store.Items() }

// Message returns the message with the given id, following confirmed temp ids.
func (c *Conversation) Message(id string) (Message, bool) {
	return c.store.Get(c.resolve(id))
}

// State returns the loading state.
func (c *Conversation) State() FeedState { return c.store.State() }

// Snapshot returns messages and state together.
func (c *Conversation) Snapshot() Snapshot[Message] { return c.store.Snapshot() }

// Subscribe registers fn to be called after every change.
func (c *Conversation) Subscribe(fn func(Snapshot[Message])) func() {
	return c.store.Subscribe(fn)
}

// Close detaches the view. Remote results that arrive later are dropped.
func (c *Conversation) Close() { c.store.Close() }
