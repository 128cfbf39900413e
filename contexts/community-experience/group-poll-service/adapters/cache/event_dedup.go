package cache

import (
	"context"
	"strings"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/ports"

	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultDedupTTL        = 10 * time.Minute
	defaultCleanupInterval = time.Minute
)

// EventDedup remembers webhook and bus event ids for a TTL. Add is atomic in
// go-cache, so two deliveries of the same id race to exactly one winner.
type EventDedup struct {
	items *gocache.Cache
}

func NewEventDedup(defaultTTL time.Duration, cleanupInterval time.Duration) *EventDedup {
	if defaultTTL <= 0 {
		defaultTTL = defaultDedupTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}
	return &EventDedup{items: gocache.New(defaultTTL, cleanupInterval)}
}

func (d *EventDedup) Remember(_ context.Context, key string, ttl time.Duration) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, nil
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	if err := d.items.Add(key, struct{}{}, ttl); err != nil {
		return true, nil
	}
	return false, nil
}

func (d *EventDedup) Len() int {
	return d.items.ItemCount()
}

var _ ports.EventDedupStore = (*EventDedup)(nil)
