package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"circles/internal/middleware"
)

// Cached projections. Bump the version segment when a cached shape changes
// so stale entries from a previous release are never decoded.
const (
	profileKeyFormat = "circles:profile:v1:%d"

	ProfileTTL = 5 * time.Minute
)

// ProfileKey is the cache key for a user's public profile view.
func ProfileKey(userID uint) string {
	return fmt.Sprintf(profileKeyFormat, userID)
}

// Invalidate deletes keys. Failures are logged; the entries then age out
// with their TTL.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed",
			slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// InvalidateProfile drops the cached profile view of the user.
func InvalidateProfile(ctx context.Context, userID uint) {
	Invalidate(ctx, ProfileKey(userID))
}
