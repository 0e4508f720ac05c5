// Package bus publishes session events to Redis Streams so UI clients
// can follow a conversation without polling. It implements
// session.Publisher.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reverie-ai/reverie/internal/session"
)

const streamPrefix = "reverie:session:"

// Event is one entry on a session's event stream.
type Event struct {
	Kind      string             `json:"kind"` // "turn" | "reply"
	SessionID string             `json:"session_id"`
	Turn      *session.TurnEvent `json:"turn,omitempty"`
	Reply     *session.Response  `json:"reply,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Bus is a Redis Streams session event bus.
type Bus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New connects to Redis and verifies the connection.
func New(redisURL string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Bus{rdb: rdb, logger: logger}, nil
}

// PublishTurn emits a finalized user turn on the session's stream.
func (b *Bus) PublishTurn(ctx context.Context, sessionID string, ev session.TurnEvent) error {
	return b.publish(ctx, sessionID, &Event{
		Kind:      "turn",
		SessionID: sessionID,
		Turn:      &ev,
		Timestamp: time.Now(),
	})
}

// PublishReply emits a generated persona reply on the session's stream.
func (b *Bus) PublishReply(ctx context.Context, sessionID string, resp *session.Response) error {
	return b.publish(ctx, sessionID, &Event{
		Kind:      "reply",
		SessionID: sessionID,
		Reply:     resp,
		Timestamp: time.Now(),
	})
}

func (b *Bus) publish(ctx context.Context, sessionID string, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	stream := streamPrefix + sessionID
	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 1000,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}

	b.logger.Debug("published session event",
		zap.String("session", sessionID),
		zap.String("kind", ev.Kind))
	return nil
}

// Subscribe follows a session's event stream from now on. Cancel the
// context to stop; the channel closes when the reader exits.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) <-chan *Event {
	ch := make(chan *Event, 16)
	stream := streamPrefix + sessionID

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev Event
					if json.Unmarshal([]byte(data), &ev) == nil {
						ch <- &ev
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (b *Bus) Close() error {
	return b.rdb.Close()
}
