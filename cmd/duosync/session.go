package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/GetStream/duosync/config"
	"github.com/GetStream/duosync/feed"
	"github.com/GetStream/duosync/httpgateway"
	"github.com/GetStream/duosync/postgres"
	"github.com/GetStream/duosync/redis"
)

type gateway interface {
	feed.MessageGateway
	feed.NotificationGateway
}

// A session wires the views of the configured user to the gateway and the cache.
type session struct {
	engine *feed.Engine
	conv   *feed.Conversation
	inbox  *feed.Inbox

	closers []func() error
}

func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *feed.Metrics, filter feed.Filter) (*session, error) {
	s := &session{}

	gw, err := openGateway(ctx, cfg, logger, s)
	if err != nil {
		return nil, err
	}

	var cache *redis.Redis
	if cfg.Redis.Addr != "" {
		cache, err = redis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.MaxItems)
		if err != nil {
			logger.Warn("Running without cache", "addr", cfg.Redis.Addr, "error", err.Error())
		} else {
			s.closers = append(s.closers, cache.Close)
		}
	}

	s.engine = feed.NewEngine(logger, metrics)
	convCfg := feed.ConversationConfig{
		ConversationID: cfg.Session.ConversationID,
		UserID:         cfg.Session.UserID,
		PartnerID:      cfg.Session.PartnerID,
		PageSize:       cfg.Feed.MessagePageSize,
		Gateway:        gw,
		Engine:         s.engine,
		Logger:         logger,
		Metrics:        metrics,
	}
	inboxCfg := feed.InboxConfig{
		UserID:   cfg.Session.UserID,
		PageSize: cfg.Feed.NotificationPageSize,
		Filter:   filter,
		Gateway:  gw,
		Engine:   s.engine,
		Logger:   logger,
		Metrics:  metrics,
	}
	if cache != nil {
		convCfg.Cache = cache
		inboxCfg.Cache = cache
	}
	s.conv = feed.NewConversation(convCfg)
	s.inbox = feed.NewInbox(inboxCfg)
	return s, nil
}

func openGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger, s *session) (gateway, error) {
	switch cfg.Gateway.Kind {
	case "postgres":
		pg, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres gateway: %w", err)
		}
		s.closers = append(s.closers, pg.Close)
		return pg, nil
	default:
		cli, err := httpgateway.NewClient(httpgateway.Config{
			BaseURL: cfg.Gateway.URL,
			Token:   cfg.Gateway.Token,
			Timeout: cfg.Gateway.Timeout,
			RPS:     cfg.Gateway.RPS,
			Burst:   cfg.Gateway.Burst,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open http gateway: %w", err)
		}
		return cli, nil
	}
}

func (s *session) requireConversation() error {
	if s.conv.ID == "" {
		return errors.New("session.conversation_id is not configured")
	}
	return nil
}

func (s *session) Close() error {
	s.conv.Close()
	s.inbox.Close()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}
