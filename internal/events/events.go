package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/nexusbot/internal/models"
)

const TypeTurn = "turn"

// Event is what other tabs on the same session receive after a completed turn.
type Event struct {
	Type        string              `json:"type"`
	SessionID   string              `json:"session_id"`
	Messages    []models.Message    `json:"messages"`
	Appointment *models.Appointment `json:"appointment,omitempty"`
	// ClientID names the tab that sent the turn; it renders the turn from its own response.
	ClientID    string              `json:"client_id,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Subscriber interface {
	// Subscribe streams raw JSON events until ctx ends or stop is called.
	Subscribe(ctx context.Context, sessionID string) (msgs <-chan []byte, stop func(), err error)
}

func Channel(sessionID string) string { return "session:" + sessionID + ":events" }

type RedisBus struct {
	rdb *redis.Client
	log logrus.FieldLogger
}

func NewRedisBus(rdb *redis.Client, log logrus.FieldLogger) *RedisBus {
	return &RedisBus{rdb: rdb, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, Channel(ev.SessionID), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, sessionID string) (<-chan []byte, func(), error) {
	ps := b.rdb.Subscribe(ctx, Channel(sessionID))
	// wait for the subscription confirmation so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for m := range ps.Channel() {
			select {
			case out <- []byte(m.Payload):
			case <-ctx.Done():
				return
			default:
				if b.log != nil {
					b.log.WithField("session_id", sessionID).Warn("event subscriber slow, dropping event")
				}
			}
		}
	}()
	return out, func() { _ = ps.Close() }, nil
}

// Nop drops every event. Used when Redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
