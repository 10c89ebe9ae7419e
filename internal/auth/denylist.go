package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:"

// Denylist records revoked token ids in Redis until the token would have expired anyway.
// A nil *Denylist revokes nothing.
type Denylist struct {
	rdb *redis.Client
	now func() time.Time
}

// NewDenylist returns a new denylist.
func NewDenylist(rdb *redis.Client) *Denylist {
	return &Denylist{rdb: rdb, now: time.Now}
}

// Revoke marks jti as revoked until the given expiry.
func (d *Denylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	if d == nil || jti == "" {
		return nil
	}
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}

// IsRevoked returns true if jti has been revoked.
func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if d == nil || jti == "" {
		return false, nil
	}
	n, err := d.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
