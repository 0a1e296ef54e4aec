package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeatInfo is the cached availability snapshot of one event. It is a read
// optimization only; the database is the authority and every booking
// re-checks availability under a transaction.
type SeatInfo struct {
	PlacesRemaining int
	ReservedSeats   int
}

type SeatInventoryManager interface {
	// WarmUp writes the availability snapshot for an event.
	WarmUp(ctx context.Context, eventID int64, placesRemaining, reservedSeats int) error
	// Get reads the availability snapshot. ok is false on a cache miss.
	Get(ctx context.Context, eventID int64) (SeatInfo, bool, error)
	// Invalidate drops the snapshot after a booking or cancelation.
	Invalidate(ctx context.Context, eventID int64) error
}

type SeatInventoryManagerImpl struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSeatInventoryManager(client *redis.Client) SeatInventoryManager {
	return &SeatInventoryManagerImpl{
		client: client,
		ttl:    5 * time.Minute,
	}
}

func (m *SeatInventoryManagerImpl) getInfoKey(eventID int64) string {
	return fmt.Sprintf("event:%d:seats", eventID)
}

func (m *SeatInventoryManagerImpl) WarmUp(ctx context.Context, eventID int64, placesRemaining, reservedSeats int) error {
	key := m.getInfoKey(eventID)
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"places_remaining": placesRemaining,
		"reserved_seats":   reservedSeats,
	})
	pipe.Expire(ctx, key, m.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (m *SeatInventoryManagerImpl) Get(ctx context.Context, eventID int64) (SeatInfo, bool, error) {
	key := m.getInfoKey(eventID)
	result, err := m.client.HGetAll(ctx, key).Result()
	if err != nil {
		return SeatInfo{}, false, err
	}
	if len(result) == 0 {
		return SeatInfo{}, false, nil
	}

	places, err := strconv.Atoi(result["places_remaining"])
	if err != nil {
		return SeatInfo{}, false, fmt.Errorf("invalid places_remaining: %v", err)
	}
	reserved, err := strconv.Atoi(result["reserved_seats"])
	if err != nil {
		return SeatInfo{}, false, fmt.Errorf("invalid reserved_seats: %v", err)
	}

	return SeatInfo{
		PlacesRemaining: places,
		ReservedSeats:   reserved,
	}, true, nil
}

func (m *SeatInventoryManagerImpl) Invalidate(ctx context.Context, eventID int64) error {
	return m.client.Del(ctx, m.getInfoKey(eventID)).Err()
}
