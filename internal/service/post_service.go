package service

import (
	"context"
	"strings"

	"circles/internal/middleware"
	"circles/internal/models"
	"circles/internal/observability"
	"circles/internal/repository"
	"circles/internal/validation"
)

type PostService struct {
	postRepo repository.PostRepository
	images   ImageStore
}

type CreatePostInput struct {
	AuthorID   uint
	Content    string
	ImageURL   string
	Visibility string
	Image      *Upload
}

type ListPostsInput struct {
	ViewerID uint
	Limit    int
	Offset   int
}

func NewPostService(postRepo repository.PostRepository, images ImageStore) *PostService {
	return &PostService{postRepo: postRepo, images: images}
}

// CreatePost stores a post. An uploaded image wins over ImageURL.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	visibility, err := models.ParseVisibility(in.Visibility)
	if err != nil {
		return nil, err
	}

	imageURL := strings.TrimSpace(in.ImageURL)
	hasImage := imageURL != "" || (in.Image != nil && len(in.Image.Content) > 0)
	if err := validation.ValidatePostContent(in.Content, hasImage); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if in.Image != nil && len(in.Image.Content) > 0 {
		if s.images == nil {
			return nil, models.NewValidationError("Image uploads are not available")
		}
		imageURL, err = s.images.StorePostImage(ctx, in.AuthorID, *in.Image)
		if err != nil {
			return nil, err
		}
	}

	post := &models.Post{
		AuthorID:   in.AuthorID,
		Content:    strings.TrimSpace(in.Content),
		Visibility: visibility,
	}
	if imageURL != "" {
		post.ImageURL = &imageURL
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "post created", "post_id", post.ID, "visibility", post.Visibility)
	return post, nil
}

func (s *PostService) ListFeed(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.ListFeed(ctx, in.ViewerID, in.Limit, in.Offset)
}

func (s *PostService) ListAuthoredPosts(ctx context.Context, authorID uint) ([]*models.Post, error) {
	return s.postRepo.ListByAuthor(ctx, authorID)
}

func (s *PostService) ListLikedPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.ListLiked(ctx, in.ViewerID, in.Limit, in.Offset)
}

// ListFollowersPosts returns posts by users who follow the viewer.
func (s *PostService) ListFollowersPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.ListByFollowers(ctx, in.ViewerID, in.Limit, in.Offset)
}

// ListFollowingPosts returns posts by users the viewer follows.
func (s *PostService) ListFollowingPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.ListByFollowing(ctx, in.ViewerID, in.Limit, in.Offset)
}

// Like is idempotent and returns the post as the viewer now sees it.
func (s *PostService) Like(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	applied, err := s.postRepo.Like(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	observability.LikeChanges.WithLabelValues("like", observability.Outcome(applied)).Inc()
	return s.postRepo.GetByID(ctx, postID, viewerID)
}

func (s *PostService) Unlike(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	applied, err := s.postRepo.Unlike(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	observability.LikeChanges.WithLabelValues("unlike", observability.Outcome(applied)).Inc()
	return s.postRepo.GetByID(ctx, postID, viewerID)
}
