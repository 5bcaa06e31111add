package redisclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// PubSub fans chat messages out to every api-server instance holding an
// open stream for the conversation.
type PubSub struct {
	client *redis.Client
	prefix string
}

func NewPubSub(client *redis.Client, prefix string) *PubSub {
	if prefix == "" {
		prefix = "emerald:chat"
	}
	return &PubSub{client: client, prefix: prefix}
}

func (p *PubSub) channel(topic string) string {
	return p.prefix + ":" + topic
}

func (p *PubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := p.client.Publish(ctx, p.channel(topic), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so anything
// published after the call returns is delivered.
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	sub := p.client.Subscribe(ctx, p.channel(topic))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan []byte, 64)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				stop()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-done:
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
