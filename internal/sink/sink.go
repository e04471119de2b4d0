// Package sink relays decoded panel state to an external consumer over
// Redis, and receives inbound commands the same way — adapted from the
// teacher's pkg/redis/client.go wrapper and its CBOR-encoding helpers
// in pkg/service/helpers.go.
package sink

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wwolkers/pyvisonic/internal/panel"
)

// Redis keys/channels this sink writes to and reads from.
const (
	channelEvent  = "visonic:event"
	channelState  = "visonic:state"
	channelCmd    = "visonic:command"
	keyStateHash  = "visonic:state:hash"
)

// Client wraps a Redis connection for the driver's event-callback relay
// and inbound command queue (spec §6).
type Client struct {
	rdb *redis.Client
}

// New connects to addr, mirroring the teacher's redis.New pattern.
func New(addr string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("sink: connect to redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.rdb.Close() }

// PublishEvent CBOR-encodes and publishes a single live-state event
// (an A5/A7/AB/A0 decode result) to subscribers, matching the teacher's
// writeUARTMessage "encode then publish" pattern one boundary removed.
func (c *Client) PublishEvent(ctx context.Context, eventName string, payload interface{}) error {
	body, err := cbor.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sink: encode event %s: %w", eventName, err)
	}
	envelope := map[string]interface{}{"event": eventName, "data": body}
	encoded, err := cbor.Marshal(envelope)
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, channelEvent, encoded).Err()
}

// WriteState CBOR-encodes the current panel.State/Sensor snapshot into
// the state hash so a late subscriber can catch up without waiting for
// the next event.
func (c *Client) WriteState(ctx context.Context, state *panel.State, zones []*panel.Sensor) error {
	body, err := cbor.Marshal(struct {
		State *panel.State     `cbor:"state"`
		Zones []*panel.Sensor  `cbor:"zones"`
	}{state, zones})
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, keyStateHash, body, 0).Err(); err != nil {
		return err
	}
	return c.rdb.Publish(ctx, channelState, body).Err()
}

// Command is one inbound request read off the command channel.
type Command struct {
	Name string                 `cbor:"name"`
	Args map[string]interface{} `cbor:"args"`
}

// SubscribeCommands runs until ctx is cancelled, decoding each inbound
// message and invoking handle. Grounded on the teacher's
// SubscribeToRedisChannels goroutine-per-channel dispatch, simplified
// to the one command channel this driver exposes.
func (c *Client) SubscribeCommands(ctx context.Context, handle func(Command)) error {
	pubsub := c.rdb.Subscribe(ctx, channelCmd)
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
			var cmd Command
			if err := cbor.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
				continue
			}
			handle(cmd)
		}
	}
}
