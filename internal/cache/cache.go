package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Locker hands out short exclusive leases on a key.
type Locker interface {
	// Acquire returns a release func when the lease was taken, or ok=false when
	// someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

func BotKey(botID string) string { return "nexusbot:bot:" + botID }

func TurnLockKey(sessionID string) string { return "nexusbot:turn:" + sessionID }
