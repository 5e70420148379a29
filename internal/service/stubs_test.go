package service

import (
	"context"
	"errors"
	"testing"

	"circles/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userRepoStub struct {
	getByIDFn             func(context.Context, uint) (*models.User, error)
	findLocalByUsernameFn func(context.Context, string) (*models.User, error)
	findByExternalIDFn    func(context.Context, string) (*models.User, error)
	createFn              func(context.Context, *models.User) error
	getProfileFn          func(context.Context, uint) (*models.ProfileView, error)
	updateProfileFn       func(context.Context, uint, models.ProfileUpdate) error
	updateAvatarFn        func(context.Context, uint, string) error
	searchFn              func(context.Context, uint, string, int, int) ([]models.UserSearchResult, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) FindLocalByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findLocalByUsernameFn(ctx, username)
}
func (s *userRepoStub) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.findByExternalIDFn(ctx, externalID)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) GetProfile(ctx context.Context, userID uint) (*models.ProfileView, error) {
	return s.getProfileFn(ctx, userID)
}
func (s *userRepoStub) UpdateProfile(ctx context.Context, userID uint, update models.ProfileUpdate) error {
	return s.updateProfileFn(ctx, userID, update)
}
func (s *userRepoStub) UpdateAvatar(ctx context.Context, userID uint, url string) error {
	return s.updateAvatarFn(ctx, userID, url)
}
func (s *userRepoStub) Search(ctx context.Context, viewerID uint, q string, limit, offset int) ([]models.UserSearchResult, error) {
	return s.searchFn(ctx, viewerID, q, limit, offset)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:             func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		findLocalByUsernameFn: func(context.Context, string) (*models.User, error) { return nil, nil },
		findByExternalIDFn:    func(context.Context, string) (*models.User, error) { return nil, nil },
		createFn:              func(context.Context, *models.User) error { return nil },
		getProfileFn: func(_ context.Context, id uint) (*models.ProfileView, error) {
			return &models.ProfileView{ID: id}, nil
		},
		updateProfileFn: func(context.Context, uint, models.ProfileUpdate) error { return nil },
		updateAvatarFn:  func(context.Context, uint, string) error { return nil },
		searchFn: func(context.Context, uint, string, int, int) ([]models.UserSearchResult, error) {
			return nil, nil
		},
	}
}

type postRepoStub struct {
	createFn func(context.Context, *models.Post) error
	getFn    func(context.Context, uint, uint) (*models.Post, error)
	existsFn func(context.Context, uint) error
	likeFn   func(context.Context, uint, uint) (bool, error)
	unlikeFn func(context.Context, uint, uint) (bool, error)
	listFn   func(context.Context, uint, int, int) ([]*models.Post, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getFn(ctx, id, viewerID)
}
func (s *postRepoStub) Exists(ctx context.Context, id uint) error {
	return s.existsFn(ctx, id)
}
func (s *postRepoStub) ListFeed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return s.listFn(ctx, viewerID, limit, offset)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID uint) ([]*models.Post, error) {
	return s.listFn(ctx, authorID, 0, 0)
}
func (s *postRepoStub) ListLiked(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return s.listFn(ctx, viewerID, limit, offset)
}
func (s *postRepoStub) ListByFollowers(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return s.listFn(ctx, viewerID, limit, offset)
}
func (s *postRepoStub) ListByFollowing(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return s.listFn(ctx, viewerID, limit, offset)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID uint) (bool, error) {
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	return s.unlikeFn(ctx, userID, postID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error { p.ID = 1; return nil },
		getFn: func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id}, nil
		},
		existsFn: func(context.Context, uint) error { return nil },
		likeFn:   func(context.Context, uint, uint) (bool, error) { return true, nil },
		unlikeFn: func(context.Context, uint, uint) (bool, error) { return true, nil },
		listFn:   func(context.Context, uint, int, int) ([]*models.Post, error) { return nil, nil },
	}
}

type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	listByPostFn func(context.Context, uint) ([]*models.Comment, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:     func(context.Context, *models.Comment) error { return nil },
		listByPostFn: func(context.Context, uint) ([]*models.Comment, error) { return nil, nil },
	}
}

type tokenStub struct {
	issued []uint
	err    error
}

func (s *tokenStub) Issue(userID uint, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.issued = append(s.issued, userID)
	return "token", nil
}

type imageStoreStub struct {
	url  string
	err  error
	kind string
}

func (s *imageStoreStub) StoreAvatar(context.Context, uint, Upload) (string, error) {
	s.kind = "avatar"
	return s.url, s.err
}

func (s *imageStoreStub) StorePostImage(context.Context, uint, Upload) (string, error) {
	s.kind = "post"
	return s.url, s.err
}

// assertCode asserts that err is an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}
