package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Backplane carries events between server processes. Deployments with a
// single process can run without one.
type Backplane interface {
	Publish(ctx context.Context, data []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

const backplaneChannel = "talentflow:events"

type redisBackplane struct {
	client *redis.Client
}

// NewRedisBackplane builds a redis pub/sub backplane on the shared client.
func NewRedisBackplane(client *redis.Client) Backplane {
	return &redisBackplane{client: client}
}

func (b *redisBackplane) Publish(ctx context.Context, data []byte) error {
	return b.client.Publish(ctx, backplaneChannel, data).Err()
}

func (b *redisBackplane) Subscribe(ctx context.Context) (<-chan []byte, error) {
	pubsub := b.client.Subscribe(ctx, backplaneChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				out <- []byte(msg.Payload)
			}
		}
	}()
	return out, nil
}
