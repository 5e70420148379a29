package service

import (
	"context"
	"strings"

	"circles/internal/models"
	"circles/internal/repository"
	"circles/internal/validation"
)

type UserService struct {
	userRepo    repository.UserRepository
	followRepo  repository.FollowRepository
	requestRepo repository.RequestRepository
	images      ImageStore
}

func NewUserService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	requestRepo repository.RequestRepository,
	images ImageStore,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		followRepo:  followRepo,
		requestRepo: requestRepo,
		images:      images,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.ProfileView, error) {
	return s.userRepo.GetProfile(ctx, userID)
}

// UpdateProfile validates and applies a partial update, then returns the
// fresh profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in models.ProfileUpdate) (*models.ProfileView, error) {
	if in.FirstName != nil {
		trimmed := strings.TrimSpace(*in.FirstName)
		if err := validation.ValidateName("first name", trimmed); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		in.FirstName = &trimmed
	}
	if in.LastName != nil {
		trimmed := strings.TrimSpace(*in.LastName)
		if err := validation.ValidateName("last name", trimmed); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		in.LastName = &trimmed
	}
	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	if in.FirstName == nil && in.LastName == nil && in.Bio == nil {
		return s.userRepo.GetProfile(ctx, userID)
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, in); err != nil {
		return nil, err
	}
	return s.userRepo.GetProfile(ctx, userID)
}

// UpdateAvatar stores the uploaded image and points the profile at it.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uint, upload Upload) (*models.ProfileView, error) {
	if s.images == nil {
		return nil, models.NewValidationError("Image uploads are not available")
	}
	url, err := s.images.StoreAvatar(ctx, userID, upload)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateAvatar(ctx, userID, url); err != nil {
		return nil, err
	}
	return s.userRepo.GetProfile(ctx, userID)
}

func (s *UserService) SearchUsers(ctx context.Context, viewerID uint, query string, limit, offset int) ([]models.UserSearchResult, error) {
	return s.userRepo.Search(ctx, viewerID, strings.TrimSpace(query), limit, offset)
}

// GetUserProfile returns targetID's profile with counts and the
// relationship between the two users.
func (s *UserService) GetUserProfile(ctx context.Context, viewerID, targetID uint) (*models.PublicProfile, error) {
	view, err := s.userRepo.GetProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}

	followers, following, err := s.followRepo.Counts(ctx, targetID)
	if err != nil {
		return nil, err
	}
	out := &models.PublicProfile{
		ProfileView:    *view,
		FollowerCount:  followers,
		FollowingCount: following,
	}
	if viewerID == targetID {
		return out, nil
	}

	if out.ViewerFollowsThem, err = s.followRepo.Exists(ctx, viewerID, targetID); err != nil {
		return nil, err
	}
	if out.TheyFollowViewer, err = s.followRepo.Exists(ctx, targetID, viewerID); err != nil {
		return nil, err
	}
	req, err := s.requestRepo.GetBetween(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	if req != nil {
		status := req.Status
		out.RequestStatus = &status
	}
	return out, nil
}
