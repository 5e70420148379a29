package repository

import (
	"context"
	"errors"

	"circles/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error)
	Exists(ctx context.Context, id uint) error
	ListFeed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint) ([]*models.Post, error)
	ListLiked(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error)
	ListByFollowers(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error)
	ListByFollowing(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error)
	Like(ctx context.Context, userID, postID uint) (bool, error)
	Unlike(ctx context.Context, userID, postID uint) (bool, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// visibleTo is true when the viewer may read the post: public posts, their
// own posts, and restricted posts whose author shares a follow edge with the
// viewer in either direction. Takes the viewer id three times.
const visibleTo = `(posts.visibility = 'all'
	OR posts.author_id = ?
	OR (posts.visibility = 'followers-following' AND EXISTS (
		SELECT 1 FROM follows f
		WHERE (f.follower_id = ? AND f.followee_id = posts.author_id)
		   OR (f.follower_id = posts.author_id AND f.followee_id = ?))))`

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	var author models.User
	if err := db.Preload("Profile").First(&author, post.AuthorID).Error; err != nil {
		return models.NewInternalError(err)
	}
	post.Author = &author
	return nil
}

// withDetails selects the post columns plus the viewer's liked flag and
// loads the author.
func (r *postRepository) withDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	return db.Model(&models.Post{}).
		Select("posts.*, EXISTS (SELECT 1 FROM post_likes pl WHERE pl.post_id = posts.id AND pl.user_id = ?) AS liked", viewerID).
		Preload("Author.Profile")
}

func (r *postRepository) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.withDetails(readDB(r.db).WithContext(ctx), viewerID).
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// Exists returns a not-found error when the post is missing.
func (r *postRepository) Exists(ctx context.Context, id uint) error {
	var count int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return models.NewInternalError(err)
	}
	if count == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) list(q *gorm.DB, limit, offset int) ([]*models.Post, error) {
	if limit > 0 || offset > 0 {
		limit, offset = clampPage(limit, offset)
		q = q.Limit(limit).Offset(offset)
	}
	var posts []*models.Post
	if err := q.Order("posts.created_at DESC, posts.id DESC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ListFeed returns every post visible to the viewer, newest first.
func (r *postRepository) ListFeed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	q := r.withDetails(readDB(r.db).WithContext(ctx), viewerID).
		Where(visibleTo, viewerID, viewerID, viewerID)
	return r.list(q, limit, offset)
}

// ListByAuthor returns all of the author's posts as seen by the author.
func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint) ([]*models.Post, error) {
	q := r.withDetails(readDB(r.db).WithContext(ctx), authorID).
		Where("posts.author_id = ?", authorID)
	return r.list(q, 0, 0)
}

func (r *postRepository) ListLiked(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	q := r.withDetails(readDB(r.db).WithContext(ctx), viewerID).
		Where("EXISTS (SELECT 1 FROM post_likes mine WHERE mine.post_id = posts.id AND mine.user_id = ?)", viewerID).
		Where(visibleTo, viewerID, viewerID, viewerID)
	return r.list(q, limit, offset)
}

// ListByFollowers returns posts written by users who follow the viewer.
func (r *postRepository) ListByFollowers(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	q := r.withDetails(readDB(r.db).WithContext(ctx), viewerID).
		Where("posts.author_id IN (SELECT follower_id FROM follows WHERE followee_id = ?)", viewerID).
		Where(visibleTo, viewerID, viewerID, viewerID)
	return r.list(q, limit, offset)
}

// ListByFollowing returns posts written by users the viewer follows.
func (r *postRepository) ListByFollowing(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	q := r.withDetails(readDB(r.db).WithContext(ctx), viewerID).
		Where("posts.author_id IN (SELECT followee_id FROM follows WHERE follower_id = ?)", viewerID).
		Where(visibleTo, viewerID, viewerID, viewerID)
	return r.list(q, limit, offset)
}

// Like records the like and bumps like_count only when the row was new.
// The bool reports whether anything changed.
func (r *postRepository) Like(ctx context.Context, userID, postID uint) (bool, error) {
	var applied bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewPostRepository(tx).Exists(ctx, postID); err != nil {
			return err
		}
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostLike{UserID: userID, PostID: postID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	if err != nil {
		return false, wrapStoreError(err)
	}
	return applied, nil
}

// Unlike is the inverse of Like.
func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	var applied bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewPostRepository(tx).Exists(ctx, postID); err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Model(&models.Post{}).
			Where("id = ? AND like_count > 0", postID).
			UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error
	})
	if err != nil {
		return false, wrapStoreError(err)
	}
	return applied, nil
}
