package service

import (
	"context"
	"strings"
	"testing"

	"circles/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_AddComment_Validation(t *testing.T) {
	t.Parallel()

	svc := NewCommentService(noopCommentRepo(), noopPostRepo())
	ctx := context.Background()

	t.Run("empty text", func(t *testing.T) {
		t.Parallel()
		_, err := svc.AddComment(ctx, CreateCommentInput{AuthorID: 1, PostID: 1, Text: "  "})
		assertValidationError(t, err)
	})

	t.Run("text too long", func(t *testing.T) {
		t.Parallel()
		_, err := svc.AddComment(ctx, CreateCommentInput{AuthorID: 1, PostID: 1, Text: strings.Repeat("x", 1001)})
		assertValidationError(t, err)
	})
}

func TestCommentService_AddComment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown post", func(t *testing.T) {
		t.Parallel()
		posts := noopPostRepo()
		posts.existsFn = func(_ context.Context, id uint) error { return models.NewNotFoundError("Post", id) }
		comments := noopCommentRepo()
		comments.createFn = func(context.Context, *models.Comment) error {
			t.Fatal("comment must not be created for a missing post")
			return nil
		}
		_, err := NewCommentService(comments, posts).AddComment(ctx, CreateCommentInput{AuthorID: 1, PostID: 9, Text: "hi"})
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("creates trimmed comment", func(t *testing.T) {
		t.Parallel()
		comments := noopCommentRepo()
		var saved *models.Comment
		comments.createFn = func(_ context.Context, c *models.Comment) error {
			saved = c
			return nil
		}
		comment, err := NewCommentService(comments, noopPostRepo()).AddComment(ctx, CreateCommentInput{AuthorID: 1, PostID: 9, Text: " nice "})
		require.NoError(t, err)
		assert.Same(t, saved, comment)
		assert.Equal(t, "nice", comment.Text)
		assert.Equal(t, uint(9), comment.PostID)
	})
}

func TestCommentService_ListComments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	posts := noopPostRepo()
	posts.existsFn = func(_ context.Context, id uint) error {
		if id == 1 {
			return nil
		}
		return models.NewNotFoundError("Post", id)
	}
	comments := noopCommentRepo()
	comments.listByPostFn = func(context.Context, uint) ([]*models.Comment, error) {
		return []*models.Comment{{ID: 2}, {ID: 1}}, nil
	}
	svc := NewCommentService(comments, posts)

	list, err := svc.ListComments(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.ListComments(ctx, 2)
	assertCode(t, err, models.CodeNotFound)
}
