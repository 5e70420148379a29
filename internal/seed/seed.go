package seed

import (
	"context"
	"fmt"
	"log"

	"circles/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// FollowDensity is the chance that an ordered pair of users is linked
	// by an accepted request.
	FollowDensity float64
	// MaxDays bounds how far back post timestamps go.
	MaxDays     int
	ShouldClean bool
	SkipBcrypt  bool
	// Seed makes runs reproducible; zero seeds from the clock.
	Seed int64
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Follows  int
	Requests map[models.RequestStatus]int
	Posts    int
	Likes    int
	Comments int
}

func newSummary() *Summary {
	return &Summary{Requests: make(map[models.RequestStatus]int)}
}

func (s *Summary) String() string {
	return fmt.Sprintf("users=%d follows=%d requests(pending=%d accepted=%d rejected=%d) posts=%d likes=%d comments=%d",
		s.Users, s.Follows,
		s.Requests[models.RequestStatusPending], s.Requests[models.RequestStatusAccepted], s.Requests[models.RequestStatusRejected],
		s.Posts, s.Likes, s.Comments)
}

// Seeder fills a database with a random social graph.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.FollowDensity <= 0 {
		opts.FollowDensity = 0.3
	}
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Factory exposes the seeder's factory for callers that add their own data.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// Seed populates the database with test data
func (s *Seeder) Seed(ctx context.Context) (*Summary, error) {
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", s.opts.NumUsers, s.opts.NumPosts)

	if s.opts.ShouldClean {
		if err := s.Clean(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	summary := newSummary()

	users, err := s.createUsers(ctx, s.opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	summary.Users = len(users)
	log.Printf("✓ %d users created", len(users))

	if err := s.SeedSocialMesh(ctx, users, summary); err != nil {
		return nil, fmt.Errorf("failed to create social mesh: %w", err)
	}
	log.Printf("✓ %d follow edges created", summary.Follows)

	posts, err := s.createPosts(ctx, users, s.opts.NumPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	summary.Posts = len(posts)
	log.Printf("✓ %d posts created", len(posts))

	if err := s.createEngagement(ctx, users, posts, summary); err != nil {
		return nil, fmt.Errorf("failed to create likes and comments: %w", err)
	}

	log.Printf("🎉 Database seeding completed: %s", summary)
	return summary, nil
}

// Clean removes every row the application owns.
func (s *Seeder) Clean(ctx context.Context) error {
	log.Println("🗑️  Clearing existing data...")
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE comments, post_likes, posts, requests, follows, profiles, users RESTART IDENTITY CASCADE`).Error
	}
	for _, table := range []string{"comments", "post_likes", "posts", "requests", "follows", "profiles", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) createUsers(ctx context.Context, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		user, err := s.factory.CreateUser(ctx)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
		if (i+1)%100 == 0 {
			log.Printf("Created %d users...", i+1)
		}
	}
	return users, nil
}

// SeedSocialMesh links users with requests in every state. Each ordered
// pair gets at most one request; accepted ones carry their follow edge.
func (s *Seeder) SeedSocialMesh(ctx context.Context, users []*models.User, summary *Summary) error {
	r := s.factory.faker.Rand
	for _, sender := range users {
		for _, receiver := range users {
			if sender.ID == receiver.ID {
				continue
			}
			var status models.RequestStatus
			switch roll := r.Float64(); {
			case roll < s.opts.FollowDensity:
				status = models.RequestStatusAccepted
			case roll < s.opts.FollowDensity+0.08:
				status = models.RequestStatusPending
			case roll < s.opts.FollowDensity+0.12:
				status = models.RequestStatusRejected
			default:
				continue
			}
			if _, err := s.factory.CreateRequest(ctx, sender, receiver, status); err != nil {
				return err
			}
			summary.Requests[status]++
			if status == models.RequestStatusAccepted {
				summary.Follows++
			}
		}
	}
	return nil
}

func (s *Seeder) createPosts(ctx context.Context, users []*models.User, count int) ([]*models.Post, error) {
	if len(users) == 0 || count <= 0 {
		return nil, nil
	}
	r := s.factory.faker.Rand
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		posts = append(posts, s.factory.BuildPost(users[r.Intn(len(users))]))
	}
	if err := s.factory.CreatePostsBatch(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Seeder) createEngagement(ctx context.Context, users []*models.User, posts []*models.Post, summary *Summary) error {
	r := s.factory.faker.Rand
	for _, post := range posts {
		for _, user := range users {
			if r.Float64() < 0.2 {
				if err := s.factory.CreateLike(ctx, user, post); err != nil {
					return err
				}
				summary.Likes++
			}
		}
		for n := r.Intn(3); n > 0; n-- {
			author := users[r.Intn(len(users))]
			if _, err := s.factory.CreateComment(ctx, author, post); err != nil {
				return err
			}
			summary.Comments++
		}
	}
	return nil
}
