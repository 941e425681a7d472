package identity

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RoleFeed pushes role reassignments to live sessions of the same user.
type RoleFeed interface {
	Publish(ctx context.Context, userID string, role Role) error
	Subscribe(ctx context.Context, userID string) (<-chan Role, error)
}

type RedisRoleFeed struct {
	client *redis.Client
}

func NewRedisRoleFeed(client *redis.Client) *RedisRoleFeed {
	return &RedisRoleFeed{client: client}
}

func (f *RedisRoleFeed) Publish(ctx context.Context, userID string, role Role) error {
	if err := f.client.Publish(ctx, roleChannel(userID), string(role)).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed. The channel closes
// when ctx is cancelled.
func (f *RedisRoleFeed) Subscribe(ctx context.Context, userID string) (<-chan Role, error) {
	pubsub := f.client.Subscribe(ctx, roleChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan Role, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				role, valid := ParseRole(msg.Payload)
				if !valid {
					continue
				}
				select {
				case out <- role:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func roleChannel(userID string) string {
	return fmt.Sprintf("roles:%s", userID)
}
