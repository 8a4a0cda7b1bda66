package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

const DefaultChannel = "batchflow.events"

// Event is the wire shape published for every lifecycle notification.
type Event struct {
	Event   domainagg.NotificationEvent `json:"event"`
	At      time.Time                   `json:"at"`
	Payload map[string]any              `json:"payload,omitempty"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *goredis.PubSub
}

// NotificationCounter receives one increment per publish attempt.
type NotificationCounter interface {
	IncNotification(event, status string)
}

type Notifier struct {
	log     *logger.Logger
	pub     publisher
	channel string
	counter NotificationCounter
	now     func() time.Time
}

var _ domainagg.Notifier = (*Notifier)(nil)

type NotifierOption func(*Notifier)

func WithChannel(ch string) NotifierOption {
	return func(n *Notifier) {
		if ch = strings.TrimSpace(ch); ch != "" {
			n.channel = ch
		}
	}
}

func WithCounter(c NotificationCounter) NotifierOption {
	return func(n *Notifier) { n.counter = c }
}

func NewNotifier(log *logger.Logger, pub publisher, opts ...NotifierOption) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	n := &Notifier{
		log:     log.With("service", "RedisNotifier"),
		pub:     pub,
		channel: DefaultChannel,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Dial connects and pings; the caller owns the returned client.
func Dial(ctx context.Context, addr string) (*goredis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (n *Notifier) Notify(ctx context.Context, event domainagg.NotificationEvent, payload map[string]any) error {
	if n == nil || n.pub == nil {
		return fmt.Errorf("redis notifier not initialized")
	}
	raw, err := json.Marshal(Event{Event: event, At: n.now().UTC(), Payload: payload})
	if err != nil {
		n.count(event, "encode_error")
		return err
	}
	if err := n.pub.Publish(ctx, n.channel, raw).Err(); err != nil {
		n.count(event, "error")
		return fmt.Errorf("publish %s: %w", event, err)
	}
	n.count(event, "ok")
	return nil
}

func (n *Notifier) count(event domainagg.NotificationEvent, status string) {
	if n.counter != nil {
		n.counter.IncNotification(string(event), status)
	}
}

// Tail subscribes to channel and calls onEvent until ctx is cancelled. It
// returns once the subscription is confirmed; delivery runs on its own goroutine.
func Tail(ctx context.Context, log *logger.Logger, sub subscriber, channel string, onEvent func(Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	ps := sub.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					log.Warn("bad notification payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}
