package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaseKey = "sentinel:scheduler:leader"

// leaseHolder gives one Scheduler instance per deployment exclusive right to
// sweep, satisfying spec.md §4.4's singleton requirement. No teacher
// precedent uses a Redis leader lease; this is grounded directly on
// go-redis/v9's SetNX/Expire idiom for a renewable distributed lock.
type leaseHolder struct {
	rdb        *redis.Client
	instanceID string
	ttl        time.Duration
}

func newLeaseHolder(rdb *redis.Client, instanceID string, ttl time.Duration) *leaseHolder {
	return &leaseHolder{rdb: rdb, instanceID: instanceID, ttl: ttl}
}

// acquireOrRenew returns true if this instance holds the lease for the
// current tick, either by freshly acquiring it or by renewing a lease it
// already owns.
func (l *leaseHolder) acquireOrRenew(ctx context.Context) (bool, error) {
	acquired, err := l.rdb.SetNX(ctx, leaseKey, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if acquired {
		return true, nil
	}

	holder, err := l.rdb.Get(ctx, leaseKey).Result()
	if err != nil {
		if err == redis.Nil {
			// Lease expired between the failed SetNX and this Get; the next
			// tick's SetNX will pick it up.
			return false, nil
		}
		return false, err
	}
	if holder != l.instanceID {
		return false, nil
	}

	if err := l.rdb.Expire(ctx, leaseKey, l.ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// release gives up the lease immediately, used on graceful shutdown so a
// replacement instance need not wait out the full TTL.
func (l *leaseHolder) release(ctx context.Context) {
	val, err := l.rdb.Get(ctx, leaseKey).Result()
	if err != nil || val != l.instanceID {
		return
	}
	_ = l.rdb.Del(ctx, leaseKey).Err()
}
