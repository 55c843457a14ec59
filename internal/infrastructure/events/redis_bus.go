package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"camcapture/internal/core/domain"
	"camcapture/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(address, password string, db, poolSize int, logger *zap.SugaredLogger) (*redis.Client, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Infow("connected to Redis",
		"address", address,
		"db", db,
		"pool_size", poolSize,
	)
	return client, nil
}

// RedisBus publishes session events on a Redis channel so other instances
// (dashboards, a paired phone) can follow the session. Publishing goes
// through a circuit breaker: while Redis is down events are dropped at once
// instead of stalling the session on dial timeouts.
type RedisBus struct {
	client     *redis.Client
	channel    string
	instanceID string
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewRedisBus(client *redis.Client, channel, instanceID string, logger *zap.SugaredLogger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	b := &RedisBus{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold:    3,
			SuccessThreshold:    1,
			Timeout:             10 * time.Second,
			MaxRequestsHalfOpen: 1,
		}),
		logger: logger,
	}
	b.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		b.logger.Warnw("redis publish circuit changed state", "from", from, "to", to)
	})
	return b
}

func (b *RedisBus) Publish(ctx context.Context, event *domain.SessionEvent) error {
	data, err := b.encode(event)
	if err != nil {
		return err
	}
	err = b.breaker.Execute(ctx, func(ctx context.Context) error {
		return b.client.Publish(ctx, b.channel, data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debugw("published event",
		"type", event.Type,
		"session_id", event.SessionID,
	)
	return nil
}

// Subscribe blocks, calling handler for every event published by other
// instances, until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(*domain.SessionEvent) error) error {
	b.mu.Lock()
	if b.pubsub != nil {
		b.mu.Unlock()
		return fmt.Errorf("already subscribed")
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	b.pubsub = pubsub
	b.mu.Unlock()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch([]byte(msg.Payload), handler)
		}
	}
}

// encode stamps the event with this instance before marshalling. The
// caller's event is not modified.
func (b *RedisBus) encode(event *domain.SessionEvent) ([]byte, error) {
	stamped := *event
	stamped.InstanceID = b.instanceID
	if stamped.Timestamp.IsZero() {
		stamped.Timestamp = time.Now()
	}
	data, err := json.Marshal(&stamped)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

func (b *RedisBus) dispatch(payload []byte, handler func(*domain.SessionEvent) error) {
	var event domain.SessionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		b.logger.Warnw("failed to unmarshal event",
			"error", err,
			"payload", string(payload),
		)
		return
	}

	if event.InstanceID == b.instanceID {
		return
	}

	if err := handler(&event); err != nil {
		b.logger.Warnw("error handling event",
			"type", event.Type,
			"error", err,
		)
	}
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}
