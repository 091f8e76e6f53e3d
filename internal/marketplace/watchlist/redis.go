package watchlist

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "landledger/pkg/domain"
)

const watchKeyPrefix = "watch:user:"

// Redis stores each user's watchlist as a set so every instance sees the
// same state.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Toggle removes landID when present, otherwise adds it. SREM reports
// whether the member existed, so one round trip decides the direction.
func (w *Redis) Toggle(ctx context.Context, userID id.UserID, landID id.LandID) (bool, error) {
	key := watchKeyPrefix + userID.String()
	removed, err := w.client.SRem(ctx, key, landID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("unwatch land: %w", err)
	}
	if removed > 0 {
		return false, nil
	}
	if err := w.client.SAdd(ctx, key, landID.String()).Err(); err != nil {
		return false, fmt.Errorf("watch land: %w", err)
	}
	return true, nil
}

// List returns the watched land ids. Members that fail to parse are skipped.
func (w *Redis) List(ctx context.Context, userID id.UserID) ([]id.LandID, error) {
	members, err := w.client.SMembers(ctx, watchKeyPrefix+userID.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("list watched lands: %w", err)
	}
	out := make([]id.LandID, 0, len(members))
	for _, m := range members {
		landID, err := id.ParseLandID(m)
		if err != nil {
			continue
		}
		out = append(out, landID)
	}
	return out, nil
}
