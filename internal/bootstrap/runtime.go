// Package bootstrap wires the process-level dependencies shared by the
// server and the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"circles/internal/cache"
	"circles/internal/config"
	"circles/internal/database"
	"circles/internal/models"
	"circles/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs the configured schema policy after connecting.
	ApplySchema bool
	// SeedDemo loads the embedded demo scenario into an empty database.
	SeedDemo bool
}

// InitRuntime connects to the database and Redis and optionally seeds demo
// data. The returned Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: opts.ApplySchema})
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedDemo {
		if cfg.IsProduction() {
			return nil, nil, fmt.Errorf("demo seeding is not allowed in %s", cfg.Env)
		}
		if _, err := EnsureDemoData(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDemoData applies the embedded demo scenario when the users table is
// empty. It reports whether anything was written.
func EnsureDemoData(ctx context.Context, db *gorm.DB) (bool, error) {
	var users int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if users > 0 {
		return false, nil
	}

	sc, err := seed.DemoScenario()
	if err != nil {
		return false, err
	}
	summary, err := seed.NewSeeder(db, seed.Options{}).ApplyScenario(ctx, sc)
	if err != nil {
		return false, err
	}

	log.Printf("demo data loaded: %s", summary)
	return true, nil
}
