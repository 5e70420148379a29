package repository

import (
	"context"
	"testing"

	"circles/internal/models"
	"circles/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_CreateAndList(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	author := testutil.CreateLocalUser(t, db, "author")
	other := testutil.CreateLocalUser(t, db, "other")
	post := testutil.CreatePost(t, db, author.ID, "post", models.VisibilityAll)

	first := &models.Comment{AuthorID: other.ID, PostID: post.ID, Text: "first"}
	require.NoError(t, repo.Create(ctx, first))
	require.NotNil(t, first.Author)
	assert.Equal(t, "other", first.Author.Username)

	second := &models.Comment{AuthorID: author.ID, PostID: post.ID, Text: "second"}
	require.NoError(t, repo.Create(ctx, second))

	comments, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[0].Text, "newest first")
	assert.Equal(t, "author", comments[0].Author.Username)
	assert.Equal(t, "first", comments[1].Text)

	empty, err := repo.ListByPost(ctx, post.ID+1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
