package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// A Page is one page of a remote feed.
type Page[T any] struct {
	Items       []T
	CurrentPage int
	TotalPages  int
	TotalItems  int
	HasNextPage bool
}

// PageQuery selects a page of a remote feed.
type PageQuery struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

// FetchFunc loads one page from the gateway.
type FetchFunc[T any] func(ctx context.Context, q PageQuery) (Page[T], error)

// Pager loads pages from the gateway into a Store, allowing a single load in flight.
type Pager[T Entry[T]] struct {
	Name    string
	Limit   int
	Logger  *slog.Logger
	Metrics *Metrics

	store *Store[T]
	fetch FetchFunc[T]
	query PageQuery
	group singleflight.Group
}

// NewPager returns a pager filling store with pages from fetch.
func NewPager[T Entry[T]](name string, store *Store[T], fetch FetchFunc[T], q PageQuery, logger *slog.Logger) *Pager[T] {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pager[T]{
		Name:   name,
		Limit:  q.Limit,
		Logger: logger,
		store:  store,
		fetch:  fetch,
		query:  q,
	}
}

// LoadFirst loads page one.
func (p *Pager[T]) LoadFirst(ctx context.Context) (Page[T], error) {
	return p.LoadPage(ctx, 1)
}

// LoadNext loads the page after the current one.
func (p *Pager[T]) LoadNext(ctx context.Context) (Page[T], error) {
	st := p.store.State()
	if st.CurrentPage == 0 {
		return Page[T]{}, ErrNotLoaded
	}
	return p.LoadPage(ctx, st.CurrentPage+1)
}

// Refresh re-fetches page one to pick up new items without rewinding the cursor.
func (p *Pager[T]) Refresh(ctx context.Context) (Page[T], error) {
	return p.do(ctx, 1, true)
}

// LoadPage loads the given page. While a load is in flight further calls share its
// result instead of issuing another remote call.
func (p *Pager[T]) LoadPage(ctx context.Context, page int) (Page[T], error) {
	return p.do(ctx, page, false)
}

func (p *Pager[T]) do(ctx context.Context, page int, refresh bool) (Page[T], error) {
	if page < 1 {
		return Page[T]{}, fmt.Errorf("load page %d: page must be positive", page)
	}
	v, err, shared := p.group.Do(p.Name, func() (any, error) {
		return p.load(ctx, page, refresh)
	})
	if shared {
		p.Logger.Debug("Joined in-flight page load", "feed", p.Name, "page", page)
	}
	res, _ := v.(Page[T])
	return res, err
}

func (p *Pager[T]) load(ctx context.Context, page int, refresh bool) (Page[T], error) {
	st := p.store.State()
	if page > 1 && st.CurrentPage > 0 && !st.HasNextPage {
		return Page[T]{}, ErrNoMorePages
	}

	if err := p.store.beginLoad(page > 1); err != nil {
		return Page[T]{}, err
	}

	q := p.query
	q.Page = page
	res, err := p.fetch(ctx, q)
	if err != nil {
		p.store.failLoad(err)
		p.Metrics.pageLoaded(p.Name, err)
		p.Logger.Error("Could not load page", "feed", p.Name, "page", page, "error", err.Error())
		return Page[T]{}, fmt.Errorf("load %s page %d: %w", p.Name, page, err)
	}

	if err := p.store.completeLoad(res, page, refresh); err != nil {
		if errors.Is(err, ErrClosed) {
			p.Logger.Debug("Dropped page for closed feed", "feed", p.Name, "page", page)
		}
		return Page[T]{}, err
	}
	p.Metrics.pageLoaded(p.Name, nil)
	p.Logger.Info("Loaded page", "feed", p.Name, "page", page, "count", len(res.Items), "has_next", res.HasNextPage)
	return res, nil
}
