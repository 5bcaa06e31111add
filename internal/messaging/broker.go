package messaging

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const hubBuffer = 64

// Broker fans published payloads out to every live subscriber of a topic.
// redisclient.PubSub implements it across processes, Hub within one.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe is ready when it returns. The stop func is idempotent and the
	// channel is closed after stop or ctx cancellation.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error)
}

// Hub is the in-process Broker. Publish never waits on a subscriber: a
// subscriber whose buffer is full misses the message and can catch up from
// history.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[*hubSub]struct{}
	logger  *slog.Logger
	dropped atomic.Uint64
}

type hubSub struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[string]map[*hubSub]struct{}), logger: logger}
}

// Dropped counts deliveries skipped because a subscriber fell behind.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) Publish(ctx context.Context, topic string, payload []byte) error {
	h.mu.Lock()
	targets := make([]*hubSub, 0, len(h.subs[topic]))
	for s := range h.subs[topic] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, s := range targets {
		select {
		case s.ch <- payload:
		case <-s.done:
		default:
			h.dropped.Add(1)
			h.logger.Warn("chat subscriber is behind, message dropped", "topic", topic)
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	s := &hubSub{ch: make(chan []byte, hubBuffer), done: make(chan struct{})}

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*hubSub]struct{})
	}
	h.subs[topic][s] = struct{}{}
	h.mu.Unlock()

	out := make(chan []byte)
	stop := func() {
		s.once.Do(func() {
			h.mu.Lock()
			delete(h.subs[topic], s)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
			h.mu.Unlock()
			close(s.done)
		})
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				stop()
				return
			case p := <-s.ch:
				select {
				case out <- p:
				case <-s.done:
					return
				case <-ctx.Done():
					stop()
					return
				}
			}
		}
	}()

	return out, stop, nil
}
