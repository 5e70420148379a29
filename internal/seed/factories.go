// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"circles/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password of every seeded local user.
const DefaultPassword = "Password123!"

var nonUsernameChars = regexp.MustCompile(`[^a-z0-9]+`)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder, scenarios and tests.
type Factory struct {
	db      *gorm.DB
	faker   *gofakeit.Faker
	maxDays int
	hash    string
	hashErr error
	cost    int
	seq     int
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	maxDays := opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	cost := bcrypt.DefaultCost
	if opts.SkipBcrypt {
		// Still a real hash so seeded users can log in, just cheap to make.
		cost = bcrypt.MinCost
	}
	return &Factory{db: db, faker: gofakeit.New(seed), maxDays: maxDays, cost: cost}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash == "" && f.hashErr == nil {
		raw, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), f.cost)
		f.hash, f.hashErr = string(raw), err
	}
	return f.hash, f.hashErr
}

// username returns a lowercase, pattern-safe, unique username.
func (f *Factory) username() string {
	f.seq++
	base := nonUsernameChars.ReplaceAllString(strings.ToLower(f.faker.Username()), "")
	if len(base) > 20 {
		base = base[:20]
	}
	if len(base) < 3 {
		base = "user"
	}
	return fmt.Sprintf("%s%d", base, f.seq)
}

// pastTime spreads timestamps over the last maxDays days.
func (f *Factory) pastTime() time.Time {
	r := f.faker.Rand
	back := time.Duration(r.Intn(f.maxDays))*24*time.Hour +
		time.Duration(r.Intn(24))*time.Hour +
		time.Duration(r.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

// BuildUser constructs a local user with a profile but does not persist it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	avatar := fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID())
	user := models.NewUser(f.username(), f.faker.FirstName(), f.faker.LastName(), models.LocalIdentity(hash))
	user.Profile = &models.Profile{Bio: f.faker.Sentence(10), AvatarURL: &avatar}

	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser constructs and persists a sample local user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateFederatedUser persists a user authenticated by googleID.
func (f *Factory) CreateFederatedUser(ctx context.Context, googleID string, overrides ...func(*models.User)) (*models.User, error) {
	user := models.NewUser(f.username(), f.faker.FirstName(), f.faker.LastName(), models.FederatedIdentity(googleID))
	user.Profile = &models.Profile{}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post by author but does not persist it. About a
// quarter are restricted to the author's circle and a third carry an image.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	r := f.faker.Rand
	post := &models.Post{
		AuthorID:   author.ID,
		Content:    f.faker.Paragraph(1, 3, 8, " "),
		Visibility: models.VisibilityAll,
	}
	if r.Float64() < 0.25 {
		post.Visibility = models.VisibilityFollowersFollowing
	}
	if r.Float64() < 0.33 {
		url := fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())
		post.ImageURL = &url
	}
	post.CreatedAt = f.pastTime()
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call.
func (f *Factory) CreatePostsBatch(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.WithContext(ctx).Omit(clause.Associations).CreateInBatches(posts, 100).Error
}

// CreateComment constructs and persists a sample comment on post.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		AuthorID: author.ID,
		PostID:   post.ID,
		Text:     f.faker.Sentence(8),
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike records user's like on post and keeps like_count in step.
// Liking twice is a no-op.
func (f *Factory) CreateLike(ctx context.Context, user *models.User, post *models.Post) error {
	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostLike{UserID: user.ID, PostID: post.ID})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
}

// Follow persists the edge follower -> followee. Existing edges are kept.
func (f *Factory) Follow(ctx context.Context, follower, followee *models.User) error {
	return follow(f.db.WithContext(ctx), follower.ID, followee.ID)
}

func follow(db *gorm.DB, followerID, followeeID uint) error {
	return db.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID}).Error
}

// CreateRequest persists a request from sender to receiver in the given
// state. An accepted request also gets its receiver -> sender edge.
func (f *Factory) CreateRequest(ctx context.Context, sender, receiver *models.User, status models.RequestStatus) (*models.Request, error) {
	req := &models.Request{SenderID: sender.ID, ReceiverID: receiver.ID, Status: status}
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(req).Error; err != nil {
			return err
		}
		if status != models.RequestStatusAccepted {
			return nil
		}
		return follow(tx, receiver.ID, sender.ID)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}
