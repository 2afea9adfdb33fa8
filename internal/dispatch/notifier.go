package dispatch

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// notifyChannel is the pub/sub channel multiple agent processes
// sharing one Redis instance publish to when work is enqueued. A
// single-process deployment never needs this: the in-process
// sync.Cond in Queue already wakes local workers with no added
// latency. Notifier exists for the rarer case of several agent
// processes on the same device load-balancing one external work
// source.
const notifyChannel = "iotagent:dispatch:notify"

// Notifier is an optional push-based wake-up hint layered on top of
// the Cond-based Queue.
type Notifier interface {
	// Notify signals that a request was just enqueued.
	Notify(ctx context.Context) error
}

// RedisNotifier publishes a notification to notifyChannel on every
// Notify call, for deployments running more than one agent process
// against a shared Redis instance.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier wraps an already-configured redis.Client.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

var _ Notifier = (*RedisNotifier)(nil)

// Notify publishes a single best-effort signal; a publish failure is
// not fatal since the Cond-based local wake-up still delivers the
// request to this process's own workers.
func (n *RedisNotifier) Notify(ctx context.Context) error {
	return n.client.Publish(ctx, notifyChannel, "1").Err()
}
