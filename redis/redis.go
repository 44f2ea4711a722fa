package redis

import (
	"context"
	"fmt"

	"github.com/GetStream/duosync/feed"
	"github.com/redis/go-redis/v9"
)

// Redis keeps the newest messages and notifications for a warm start.
type Redis struct {
	cli     *redis.Client
	maxSize int
}

// DefaultMaxSize is the number of items kept per conversation or user.
const DefaultMaxSize = 50

// Connect connects to the Redis server and pings the server to ensure the
// connection is working. maxSize bounds every cached feed; zero means DefaultMaxSize.
func Connect(ctx context.Context, addr string, maxSize int) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Redis{
		cli:     cli,
		maxSize: maxSize,
	}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.cli.Close()
}

func messagesKey(conversationID string) string {
	return fmt.Sprintf("conversations:%s:messages", conversationID)
}

func notificationsKey(userID string) string {
	return fmt.Sprintf("users:%s:notifications", userID)
}

// ListMessages returns up to limit cached messages, newest first.
func (r *Redis) ListMessages(ctx context.Context, conversationID string, limit int) ([]feed.Message, error) {
	keys, err := r.newest(ctx, messagesKey(conversationID), limit)
	if err != nil {
		return nil, err
	}

	out := make([]feed.Message, 0, len(keys))
	for _, key := range keys {
		var m message
		if err := r.cli.HGetAll(ctx, key).Scan(&m); err != nil {
			return nil, fmt.Errorf("hgetall: %w", err)
		}
		if m.ID == "" {
			// Evicted between the range and the read.
			continue
		}
		fm, err := m.FeedMessage()
		if err != nil {
			return nil, err
		}
		out = append(out, fm)
	}
	return out, nil
}

// SaveMessages stores msgs under the message:MESSAGE_ID key and indexes them by time in
// the conversation's sorted set. Messages the server has not confirmed are skipped.
func (r *Redis) SaveMessages(ctx context.Context, conversationID string, msgs ...feed.Message) error {
	set := messagesKey(conversationID)
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, msg := range msgs {
			if feed.IsTempID(msg.ID) || msg.Status == feed.StatusFailed {
				continue
			}
			m, err := newMessage(msg)
			if err != nil {
				return err
			}
			key := fmt.Sprintf("message:%s", m.ID)
			pipe.HSet(ctx, key, m)
			pipe.ZAdd(ctx, set, redis.Z{
				Score:  float64(m.CreatedAt),
				Member: key,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save messages: %w", err)
	}

	if err := r.evictOldest(ctx, set); err != nil {
		return fmt.Errorf("evict oldest: %w", err)
	}
	return nil
}

// ListNotifications returns up to limit cached notifications, newest first.
func (r *Redis) ListNotifications(ctx context.Context, userID string, limit int) ([]feed.Notification, error) {
	keys, err := r.newest(ctx, notificationsKey(userID), limit)
	if err != nil {
		return nil, err
	}

	cmds, err := r.cli.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}

	out := make([]feed.Notification, 0, len(cmds))
	for _, cmd := range cmds {
		var n notification
		if err := cmd.(*redis.MapStringStringCmd).Scan(&n); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if n.ID == "" {
			continue
		}
		out = append(out, n.FeedNotification())
	}
	return out, nil
}

// SaveNotifications stores ns and indexes them in the user's sorted set.
func (r *Redis) SaveNotifications(ctx context.Context, userID string, ns ...feed.Notification) error {
	set := notificationsKey(userID)
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, n := range ns {
			key := fmt.Sprintf("notification:%s", n.ID)
			pipe.HSet(ctx, key, newNotification(n))
			pipe.ZAdd(ctx, set, redis.Z{
				Score:  float64(n.CreatedAt.UnixNano()),
				Member: key,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save notifications: %w", err)
	}

	if err := r.evictOldest(ctx, set); err != nil {
		return fmt.Errorf("evict oldest: %w", err)
	}
	return nil
}

func (r *Redis) newest(ctx context.Context, set string, limit int) ([]string, error) {
	if limit <= 0 || limit > r.maxSize {
		limit = r.maxSize
	}
	keys, err := r.cli.ZRevRange(ctx, set, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}
	return keys, nil
}

// evictOldest trims set to maxSize entries, deleting the hashes that fall out.
func (r *Redis) evictOldest(ctx context.Context, set string) error {
	vals, err := r.cli.ZRange(ctx, set, 0, int64(-r.maxSize-1)).Result()
	if err != nil {
		return fmt.Errorf("zrange: %w", err)
	}
	if len(vals) == 0 {
		return nil
	}

	_, err = r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		members := make([]any, len(vals))
		for i, key := range vals {
			members[i] = key
			pipe.Del(ctx, key)
		}
		pipe.ZRem(ctx, set, members...)
		return nil
	})
	return err
}
