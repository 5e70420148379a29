package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"circles/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()

	svc := NewPostService(noopPostRepo(), nil)
	ctx := context.Background()

	t.Run("empty content without image", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: 1, Content: "   "})
		assertValidationError(t, err)
	})

	t.Run("unknown visibility", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: 1, Content: "hi", Visibility: "friends"})
		assertValidationError(t, err)
	})

	t.Run("content too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: 1, Content: strings.Repeat("x", 5001)})
		assertValidationError(t, err)
	})

	t.Run("upload without image store", func(t *testing.T) {
		t.Parallel()
		_, err := svc.CreatePost(ctx, CreatePostInput{AuthorID: 1, Image: &Upload{Content: []byte("x")}})
		assertValidationError(t, err)
	})
}

func TestPostService_CreatePost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("defaults visibility to all", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		var saved *models.Post
		repo.createFn = func(_ context.Context, p *models.Post) error {
			saved = p
			return nil
		}
		post, err := NewPostService(repo, nil).CreatePost(ctx, CreatePostInput{AuthorID: 4, Content: " hello "})
		require.NoError(t, err)
		assert.Same(t, saved, post)
		assert.Equal(t, models.VisibilityAll, post.Visibility)
		assert.Equal(t, "hello", post.Content)
		assert.Nil(t, post.ImageURL)
	})

	t.Run("image only post through the image store", func(t *testing.T) {
		t.Parallel()
		images := &imageStoreStub{url: "/uploads/posts/p.webp"}
		post, err := NewPostService(noopPostRepo(), images).CreatePost(ctx, CreatePostInput{
			AuthorID:   4,
			Visibility: "followers-following",
			Image:      &Upload{Content: []byte("png")},
		})
		require.NoError(t, err)
		assert.Equal(t, "post", images.kind)
		require.NotNil(t, post.ImageURL)
		assert.Equal(t, "/uploads/posts/p.webp", *post.ImageURL)
		assert.Equal(t, models.VisibilityFollowersFollowing, post.Visibility)
	})

	t.Run("image url only", func(t *testing.T) {
		t.Parallel()
		post, err := NewPostService(noopPostRepo(), nil).CreatePost(ctx, CreatePostInput{AuthorID: 4, ImageURL: "https://example.com/a.png"})
		require.NoError(t, err)
		require.NotNil(t, post.ImageURL)
	})

	t.Run("image store failure", func(t *testing.T) {
		t.Parallel()
		images := &imageStoreStub{err: models.NewValidationError("Invalid image file")}
		_, err := NewPostService(noopPostRepo(), images).CreatePost(ctx, CreatePostInput{AuthorID: 4, Image: &Upload{Content: []byte("x")}})
		assertValidationError(t, err)
	})
}

func TestPostService_LikeUnlike(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := noopPostRepo()
	repo.getFn = func(_ context.Context, id, viewer uint) (*models.Post, error) {
		return &models.Post{ID: id, LikeCount: 1, Liked: viewer == 2}, nil
	}
	svc := NewPostService(repo, nil)

	post, err := svc.Like(ctx, 2, 5)
	require.NoError(t, err)
	assert.True(t, post.Liked)

	_, err = svc.Unlike(ctx, 2, 5)
	require.NoError(t, err)

	repo.likeFn = func(_ context.Context, _, postID uint) (bool, error) {
		return false, models.NewNotFoundError("Post", postID)
	}
	_, err = svc.Like(ctx, 2, 99)
	assertCode(t, err, models.CodeNotFound)

	repo.unlikeFn = func(context.Context, uint, uint) (bool, error) {
		return false, models.NewInternalError(errors.New("db down"))
	}
	_, err = svc.Unlike(ctx, 2, 5)
	assertCode(t, err, models.CodeInternal)
}

func TestPostService_Lists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := noopPostRepo()
	var gotViewer uint
	var gotLimit int
	repo.listFn = func(_ context.Context, viewer uint, limit, _ int) ([]*models.Post, error) {
		gotViewer, gotLimit = viewer, limit
		return []*models.Post{{ID: 1}}, nil
	}
	svc := NewPostService(repo, nil)
	in := ListPostsInput{ViewerID: 3, Limit: 10}

	for name, list := range map[string]func(context.Context, ListPostsInput) ([]*models.Post, error){
		"feed":      svc.ListFeed,
		"liked":     svc.ListLikedPosts,
		"followers": svc.ListFollowersPosts,
		"following": svc.ListFollowingPosts,
	} {
		posts, err := list(ctx, in)
		require.NoError(t, err, name)
		assert.Len(t, posts, 1, name)
		assert.Equal(t, uint(3), gotViewer, name)
		assert.Equal(t, 10, gotLimit, name)
	}

	posts, err := svc.ListAuthoredPosts(ctx, 8)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.Equal(t, uint(8), gotViewer)
}
