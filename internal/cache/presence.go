// Package cache tracks which users are currently connected to each room,
// backed by Redis so presence survives process restarts and can be shared
// across instances.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const presenceTTL = 45 * time.Second

// Presence records heartbeats in a per-room sorted set scored by expiry
// time. Stale members are trimmed on every read.
type Presence struct {
	rdb *redis.Client
}

func Connect(ctx context.Context, url string) (*Presence, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Presence{rdb: rdb}, nil
}

func NewPresence(rdb *redis.Client) *Presence {
	return &Presence{rdb: rdb}
}

func key(roomID uuid.UUID) string {
	return "presence:" + roomID.String()
}

// Heartbeat marks uid online in the room for the TTL window. Clients call
// this on connect and periodically while connected.
func (p *Presence) Heartbeat(ctx context.Context, roomID uuid.UUID, uid string) error {
	expiry := float64(time.Now().Add(presenceTTL).UnixMilli())
	pipe := p.rdb.Pipeline()
	pipe.ZAdd(ctx, key(roomID), redis.Z{Score: expiry, Member: uid})
	pipe.Expire(ctx, key(roomID), 2*presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence heartbeat: %w", err)
	}
	return nil
}

// Disconnect removes uid from the room immediately.
func (p *Presence) Disconnect(ctx context.Context, roomID uuid.UUID, uid string) error {
	if err := p.rdb.ZRem(ctx, key(roomID), uid).Err(); err != nil {
		return fmt.Errorf("presence disconnect: %w", err)
	}
	return nil
}

// Online returns the uids whose heartbeats have not expired.
func (p *Presence) Online(ctx context.Context, roomID uuid.UUID) ([]string, error) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	pipe := p.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, key(roomID), "-inf", now)
	members := pipe.ZRange(ctx, key(roomID), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("presence list: %w", err)
	}
	return members.Val(), nil
}

func (p *Presence) Close() error {
	return p.rdb.Close()
}
