package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// relayMessage is the cross-instance frame: the envelope plus the id of
// the instance that emitted it, so the emitter can skip its own echo.
type relayMessage struct {
	Instance string   `json:"instance"`
	Envelope Envelope `json:"envelope"`
}

// Relay bridges hubs running in separate API instances over a Redis
// pub/sub channel: every local broadcast is published, and envelopes
// published by other instances are delivered to local rooms.
type Relay struct {
	hub        *Hub
	rc         *redis.Client
	channel    string
	instanceID string
	log        *log.Logger
}

func NewRelay(hub *Hub, rc *redis.Client, channel string, logger *log.Logger) *Relay {
	return &Relay{
		hub:        hub,
		rc:         rc,
		channel:    channel,
		instanceID: uuid.NewString(),
		log:        logger,
	}
}

// Publish mirrors a locally emitted envelope to the channel. Publish
// failures are logged and otherwise ignored: local delivery has already
// happened and remote viewers resynchronize on their next event.
func (r *Relay) Publish(env Envelope) {
	data, err := json.Marshal(relayMessage{Instance: r.instanceID, Envelope: env})
	if err != nil {
		r.log.Errorf("marshal relay message: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.rc.Publish(ctx, r.channel, data).Err(); err != nil {
		r.log.Errorf("unable to publish %s for board %s: %v", env.Event, env.BoardID, err)
	}
}

// Run subscribes to the channel and applies envelopes from other
// instances to the local hub until ctx is cancelled. A dropped pub/sub
// connection is re-established after a short delay.
func (r *Relay) Run(ctx context.Context) {
	for {
		sub := r.rc.Subscribe(ctx, r.channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var m relayMessage
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					r.log.Errorf("unable to parse relay message: %v", err)
					continue
				}
				if m.Instance == r.instanceID {
					continue
				}
				r.hub.deliver(m.Envelope)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.log.Error("relay channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}
