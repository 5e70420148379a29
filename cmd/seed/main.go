// Command main runs the database seeder for Circles.
package main

import (
	"context"
	"flag"
	"log"

	"circles/internal/config"
	"circles/internal/database"
	"circles/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	density := flag.Float64("density", 0.3, "Probability that one user follows another")
	maxDays := flag.Int("days", 30, "Spread post timestamps over this many past days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 uses the clock)")
	fast := flag.Bool("fast", false, "Hash passwords with the minimum bcrypt cost")
	scenarioPath := flag.String("scenario", "", "Apply a YAML scenario file instead of random data")
	demo := flag.Bool("demo", false, "Apply the built-in demo scenario instead of random data")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatalf("❌ Refusing to seed a %s database", cfg.Env)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, seed.Options{
		NumUsers:      *numUsers,
		NumPosts:      *numPosts,
		FollowDensity: *density,
		MaxDays:       *maxDays,
		ShouldClean:   *shouldClean,
		SkipBcrypt:    *fast,
		Seed:          *randSeed,
	})

	var scenario *seed.Scenario
	switch {
	case *scenarioPath != "":
		scenario, err = seed.LoadScenario(*scenarioPath)
	case *demo:
		scenario, err = seed.DemoScenario()
	}
	if err != nil {
		log.Fatalf("❌ Invalid scenario: %v", err)
	}

	if scenario != nil {
		log.Printf("Applying scenario with %d users and %d posts, clean=%v", len(scenario.Users), len(scenario.Posts), *shouldClean)
		if *shouldClean {
			if err := s.Clean(ctx); err != nil {
				log.Fatalf("❌ Cleanup failed: %v", err)
			}
		}
		summary, err := s.ApplyScenario(ctx, scenario)
		if err != nil {
			log.Fatalf("❌ Scenario seeding failed: %v", err)
		}
		log.Printf("✓ %s", summary)
	} else {
		log.Printf("Target: %d users, %d posts, density=%.2f, clean=%v", *numUsers, *numPosts, *density, *shouldClean)
		if _, err := s.Seed(ctx); err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All local test users have the password: %s", seed.DefaultPassword)
}
