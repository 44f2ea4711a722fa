package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// A Filter selects which notifications an Inbox loads.
type Filter string

const (
	FilterAll    Filter = "all"
	FilterUnread Filter = "unread"
)

// InboxConfig configures an Inbox.
type InboxConfig struct {
	UserID   string
	PageSize int
	Filter   Filter

	Gateway NotificationGateway
	Cache   NotificationCache
	Engine  *Engine
	Logger  *slog.Logger
	Metrics *Metrics
}

// Inbox is the notification view of one user. It keeps the unread count in step with
// every read mark.
type Inbox struct {
	UserID string
	Filter Filter
	Logger *slog.Logger

	gateway NotificationGateway
	cache   NotificationCache
	engine  *Engine
	store   *Store[Notification]
	pager   *Pager[Notification]
	unread  UnreadTracker
}

// NewInbox returns an empty, unloaded inbox.
func NewInbox(cfg InboxConfig) *Inbox {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("user", cfg.UserID)
	engine := cfg.Engine
	if engine == nil {
		engine = NewEngine(logger, cfg.Metrics)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.Filter == "" {
		cfg.Filter = FilterAll
	}

	in := &Inbox{
		UserID:  cfg.UserID,
		Filter:  cfg.Filter,
		Logger:  logger,
		gateway: cfg.Gateway,
		cache:   cfg.Cache,
		engine:  engine,
		store:   NewStore[Notification](),
	}
	q := PageQuery{Limit: cfg.PageSize, UnreadOnly: cfg.Filter == FilterUnread}
	in.pager = NewPager("notifications", in.store, in.fetch, q, logger)
	in.pager.Metrics = cfg.Metrics
	return in
}

func (in *Inbox) fetch(ctx context.Context, q PageQuery) (Page[Notification], error) {
	page, err := in.gateway.FetchNotifications(ctx, in.UserID, q)
	if err != nil {
		return Page[Notification]{}, err
	}
	for i := range page.Items {
		if page.Items[i].UserID == "" {
			page.Items[i].UserID = in.UserID
		}
		page.Items[i].Type = ParseNotificationType(string(page.Items[i].Type))
	}
	in.save(ctx, page.Items...)
	return page, nil
}

func (in *Inbox) save(ctx context.Context, ns ...Notification) {
	if in.cache == nil || len(ns) == 0 {
		return
	}
	if err := in.cache.SaveNotifications(ctx, in.UserID, ns...); err != nil {
		in.Logger.Warn("Could not cache notifications", "count", len(ns), "error", err.Error())
	}
}

// Load fetches the first page and the unread count concurrently. The count comes from
// the gateway since the first page may not hold every unread notification.
func (in *Inbox) Load(ctx context.Context) error {
	if in.cache != nil && in.store.Len() == 0 {
		ns, err := in.cache.ListNotifications(ctx, in.UserID, in.pager.Limit)
		if err != nil {
			in.Logger.Warn("Could not read cached notifications", "error", err.Error())
		} else if len(ns) > 0 {
			if in.Filter == FilterUnread {
				ns = unreadOnly(ns)
			}
			if err := in.store.Merge(ns); err != nil {
				return err
			}
		}
	}
	return in.load(ctx, in.pager.LoadFirst)
}

// Refresh re-fetches the first page and the unread count.
func (in *Inbox) Refresh(ctx context.Context) error {
	return in.load(ctx, in.pager.Refresh)
}

func (in *Inbox) load(ctx context.Context, page func(context.Context) (Page[Notification], error)) error {
	var countErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := page(gctx)
		return err
	})
	g.Go(func() error {
		countErr = in.refreshCount(gctx)
		return nil
	})
	err := g.Wait()
	if countErr != nil {
		if ferr := in.recount(ctx, countErr); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

// refreshCount runs with no read marks in flight, so the server count cannot be
// overtaken by a local decrement.
func (in *Inbox) refreshCount(ctx context.Context) error {
	return in.engine.Exclusive(ctx, func() error {
		n, err := in.gateway.UnreadCount(ctx, in.UserID)
		if err != nil {
			return fmt.Errorf("unread count: %w", err)
		}
		in.unread.Set(n)
		return nil
	})
}

// recount sets the unread count from the loaded notifications. It runs once the page
// load has settled so the count covers what was fetched.
func (in *Inbox) recount(ctx context.Context, cause error) error {
	return in.engine.Exclusive(ctx, func() error {
		n := CountUnread(in.store.Items())
		in.Logger.Warn("Could not fetch unread count", "fallback", n, "error", cause.Error())
		in.unread.Set(n)
		return nil
	})
}

// LoadMore fetches the next page.
func (in *Inbox) LoadMore(ctx context.Context) error {
	_, err := in.pager.LoadNext(ctx)
	return err
}

type readSnapshot struct {
	prev      Notification
	wasUnread bool
}

// MarkRead marks one notification read. The unread count drops only if it was unread.
func (in *Inbox) MarkRead(ctx context.Context, id string) error {
	return Run(ctx, in.engine, Mutation[readSnapshot]{
		Kind:   KindMarkRead,
		Target: id,
		Apply: func() (readSnapshot, error) {
			var snap readSnapshot
			err := in.store.Mutate(func(tx *Tx[Notification]) error {
				n, ok := tx.Get(id)
				if !ok {
					return fmt.Errorf("mark read %s: %w", id, ErrNotFound)
				}
				snap = readSnapshot{prev: n.Clone(), wasUnread: !n.Read}
				n.Read = true
				tx.Put(n)
				if snap.wasUnread {
					in.unread.Decrement()
				}
				return nil
			})
			return snap, err
		},
		Remote: func(ctx context.Context) error {
			return in.gateway.MarkNotificationRead(ctx, in.UserID, id)
		},
		Confirm: func(readSnapshot) {
			if n, ok := in.store.Get(id); ok {
				in.save(ctx, n)
			}
		},
		Rollback: func(s readSnapshot, _ error) {
			err := in.store.Mutate(func(tx *Tx[Notification]) error {
				tx.Update(id, func(n *Notification) { n.Read = s.prev.Read })
				if s.wasUnread {
					in.unread.Increment()
				}
				return nil
			})
			if err != nil && !errors.Is(err, ErrClosed) {
				in.Logger.Error("Could not restore notification", "id", id, "error", err.Error())
			}
		},
	})
}

type readAllSnapshot struct {
	items  []Notification
	unread int
}

// MarkAllRead marks every notification read. With nothing unread it does nothing.
// A failure restores every notification and the count as they were.
func (in *Inbox) MarkAllRead(ctx context.Context) error {
	return Run(ctx, in.engine, Mutation[readAllSnapshot]{
		Kind:   KindMarkAllRead,
		Target: BulkTarget,
		Apply: func() (readAllSnapshot, error) {
			var snap readAllSnapshot
			err := in.store.Mutate(func(tx *Tx[Notification]) error {
				if in.unread.Count() == 0 {
					return errSkip
				}
				snap.items = tx.Items()
				snap.unread = in.unread.Zero()
				tx.Each(func(n *Notification) { n.Read = true })
				return nil
			})
			return snap, err
		},
		Remote: func(ctx context.Context) error {
			return in.gateway.MarkAllNotificationsRead(ctx, in.UserID)
		},
		Confirm: func(readAllSnapshot) {
			in.save(ctx, in.store.Items()...)
		},
		Rollback: func(s readAllSnapshot, _ error) {
			err := in.store.Mutate(func(tx *Tx[Notification]) error {
				for _, n := range s.items {
					if _, ok := tx.Get(n.ID); ok {
						tx.Put(n)
					}
				}
				in.unread.Set(s.unread)
				return nil
			})
			if err != nil && !errors.Is(err, ErrClosed) {
				in.Logger.Error("Could not restore notifications", "error", err.Error())
			}
		},
	})
}

// UnreadCount returns the unread count.
func (in *Inbox) UnreadCount() int { return in.unread.Count() }

// Notifications returns the loaded notifications, newest first.
func (in *Inbox) Notifications() []Notification { return in.store.Items() }

// State returns the loading state.
func (in *Inbox) State() FeedState { return in.store.State() }

// Snapshot returns notifications and state together.
func (in *Inbox) Snapshot() Snapshot[Notification] { return in.store.Snapshot() }

// Subscribe registers fn to be called after every change.
func (in *Inbox) Subscribe(fn func(Snapshot[Notification])) func() {
	return in.store.Subscribe(fn)
}

// Close detaches the view.
func (in *Inbox) Close() { in.store.Close() }

func unreadOnly(ns []Notification) []Notification {
	out := ns[:0:0]
	for _, n := range ns {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}
