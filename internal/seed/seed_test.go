package seed

import (
	"context"
	"testing"
	"time"

	"circles/internal/models"
	"circles/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSeeder_Seed(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	seeder := NewSeeder(db, Options{NumUsers: 8, NumPosts: 20, FollowDensity: 0.4, SkipBcrypt: true, Seed: 42})
	summary, err := seeder.Seed(ctx)
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Users)
	assert.Equal(t, 20, summary.Posts)

	var users, posts, follows, requests int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.Follow{}).Count(&follows).Error)
	require.NoError(t, db.Model(&models.Request{}).Count(&requests).Error)
	assert.EqualValues(t, 8, users)
	assert.EqualValues(t, 20, posts)
	assert.EqualValues(t, summary.Follows, follows)

	total := 0
	for _, n := range summary.Requests {
		total += n
	}
	assert.EqualValues(t, total, requests)

	t.Run("accepted requests carry their edge", func(t *testing.T) {
		var missing int64
		err := db.Model(&models.Request{}).
			Where("status = ?", models.RequestStatusAccepted).
			Where("NOT EXISTS (SELECT 1 FROM follows f WHERE f.follower_id = requests.receiver_id AND f.followee_id = requests.sender_id)").
			Count(&missing).Error
		require.NoError(t, err)
		assert.Zero(t, missing)
	})

	t.Run("like counts match likes", func(t *testing.T) {
		var drift int64
		err := db.Model(&models.Post{}).
			Where("like_count <> (SELECT COUNT(*) FROM post_likes pl WHERE pl.post_id = posts.id)").
			Count(&drift).Error
		require.NoError(t, err)
		assert.Zero(t, drift)
	})

	t.Run("seeded users can log in", func(t *testing.T) {
		var user models.User
		require.NoError(t, db.First(&user).Error)
		require.NotNil(t, user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(DefaultPassword)))
	})
}

func TestSeeder_CleanReplacesData(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	opts := Options{NumUsers: 4, NumPosts: 5, SkipBcrypt: true, Seed: 7}
	_, err := NewSeeder(db, opts).Seed(ctx)
	require.NoError(t, err)

	opts.ShouldClean = true
	opts.Seed = 8
	_, err = NewSeeder(db, opts).Seed(ctx)
	require.NoError(t, err)

	var users, posts int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	assert.EqualValues(t, 4, users)
	assert.EqualValues(t, 5, posts)
}

func TestFactory_BuildPost(t *testing.T) {
	f := NewFactory(nil, Options{MaxDays: 30, Seed: 1})
	author := &models.User{ID: 3}

	for i := 0; i < 50; i++ {
		p := f.BuildPost(author)
		assert.Equal(t, uint(3), p.AuthorID)
		assert.NotEmpty(t, p.Content)
		_, err := models.ParseVisibility(string(p.Visibility))
		assert.NoError(t, err)
		assert.WithinDuration(t, time.Now(), p.CreatedAt, 31*24*time.Hour)
		assert.False(t, p.CreatedAt.After(time.Now()))
	}

	p := f.BuildPost(author, func(p *models.Post) { p.Content = "fixed" })
	assert.Equal(t, "fixed", p.Content)
}

func TestFactory_UsernamesAreValidAndUnique(t *testing.T) {
	f := NewFactory(nil, Options{Seed: 3, SkipBcrypt: true})
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		u, err := f.BuildUser()
		require.NoError(t, err)
		assert.Regexp(t, `^[a-z0-9]{3,30}$`, u.Username)
		assert.False(t, seen[u.Username], "duplicate %s", u.Username)
		seen[u.Username] = true
		assert.True(t, u.IsLocal())
	}
}

func TestFactory_RequestsAndLikes(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	f := NewFactory(db, Options{SkipBcrypt: true, Seed: 5})

	alice, err := f.CreateUser(ctx)
	require.NoError(t, err)
	bob, err := f.CreateUser(ctx)
	require.NoError(t, err)

	_, err = f.CreateRequest(ctx, alice, bob, models.RequestStatusAccepted)
	require.NoError(t, err)

	var edge models.Follow
	require.NoError(t, db.Where("follower_id = ? AND followee_id = ?", bob.ID, alice.ID).First(&edge).Error)

	_, err = f.CreateRequest(ctx, bob, alice, models.RequestStatusPending)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "pending requests add no edge")

	assert.Error(t, f.Follow(ctx, alice, alice))

	post := f.BuildPost(alice)
	require.NoError(t, f.CreatePostsBatch(ctx, []*models.Post{post}))
	require.NoError(t, f.CreateLike(ctx, bob, post))
	require.NoError(t, f.CreateLike(ctx, bob, post))

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, 1, stored.LikeCount)
}
