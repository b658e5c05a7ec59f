package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when the caller still owns it, so
// a lease that expired and was re-acquired elsewhere is never released by
// its previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is the multi-process Locker. Each room's lock is a redis key
// holding the owner's token, written with NX+PX so the lease both
// excludes other processes and expires on its own if the holder dies.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis locker on an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func lockKey(roomID uint) string {
	return fmt.Sprintf("mafia:room_lock:%d", roomID)
}

// Acquire attempts to take the room's lease for ttl.
func (r *Redis) Acquire(ctx context.Context, roomID uint, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey(roomID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lease if token still owns it.
func (r *Redis) Release(ctx context.Context, roomID uint, token string) error {
	return releaseScript.Run(ctx, r.client, []string{lockKey(roomID)}, token).Err()
}
