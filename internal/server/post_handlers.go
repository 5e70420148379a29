package server

import (
	"context"
	"errors"

	"circles/internal/models"
	"circles/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts. It accepts JSON, or a multipart form
// whose optional "image" file is stored and attached to the post.
// @Summary Create a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Param content formData string false "Text content"
// @Param visibility formData string false "all or followers-following"
// @Param image formData file false "Image"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Content    string `json:"content" form:"content"`
		ImageURL   string `json:"image_url" form:"image_url"`
		Visibility string `json:"visibility" form:"visibility"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	in := service.CreatePostInput{
		AuthorID:   currentUserID(c),
		Content:    req.Content,
		ImageURL:   req.ImageURL,
		Visibility: req.Visibility,
	}
	if isMultipart(c) {
		upload, err := readUpload(c, "image")
		switch {
		case err == nil:
			in.Image = &upload
		case !errors.Is(err, errNoUpload):
			return badRequest(c, "Unable to read uploaded file")
		}
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetMyPosts handles GET /api/posts
// @Summary List the caller's posts
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListAuthoredPosts(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetFeed handles GET /api/posts/feed
// @Summary Posts visible to the caller, newest first
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /posts/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	return s.listPosts(c, s.postService.ListFeed)
}

// GetLikedPosts handles GET /api/posts/liked
func (s *Server) GetLikedPosts(c *fiber.Ctx) error {
	return s.listPosts(c, s.postService.ListLikedPosts)
}

// GetFollowersPosts handles GET /api/posts/followers
func (s *Server) GetFollowersPosts(c *fiber.Ctx) error {
	return s.listPosts(c, s.postService.ListFollowersPosts)
}

// GetFollowingPosts handles GET /api/posts/following
func (s *Server) GetFollowingPosts(c *fiber.Ctx) error {
	return s.listPosts(c, s.postService.ListFollowingPosts)
}

func (s *Server) listPosts(c *fiber.Ctx, list func(ctx context.Context, in service.ListPostsInput) ([]*models.Post, error)) error {
	page := parsePagination(c, 20)
	posts, err := list(c.UserContext(), service.ListPostsInput{
		ViewerID: currentUserID(c),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// LikePost handles PUT /api/posts/:id/like. Liking twice is a no-op.
// @Summary Like a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [put]
func (s *Server) LikePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Like(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// UnlikePost handles DELETE /api/posts/:id/like
// @Summary Remove a like
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Unlike(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}
