package repository

import (
	"context"
	"errors"
	"time"

	"circles/internal/cache"
	"circles/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users and profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	FindLocalByUsername(ctx context.Context, username string) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	GetProfile(ctx context.Context, userID uint) (*models.ProfileView, error)
	UpdateProfile(ctx context.Context, userID uint, update models.ProfileUpdate) error
	UpdateAvatar(ctx context.Context, userID uint, avatarURL string) error
	Search(ctx context.Context, viewerID uint, query string, limit, offset int) ([]models.UserSearchResult, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Preload("Profile").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// FindLocalByUsername ignores federated accounts. It returns nil, nil when
// no local account has the username.
func (r *userRepository) FindLocalByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := readDB(r.db).WithContext(ctx).
		Preload("Profile").
		Where("username = ? AND password_hash IS NOT NULL AND external_id IS NULL", username).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := readDB(r.db).WithContext(ctx).
		Preload("Profile").
		Where("external_id = ?", externalID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// Create inserts the user together with its profile in one transaction.
// A missing profile is created empty.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.Profile == nil {
		user.Profile = &models.Profile{}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrIdentityInvariant) {
			return models.NewValidationError(err.Error())
		}
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) GetProfile(ctx context.Context, userID uint) (*models.ProfileView, error) {
	var view models.ProfileView
	err := cache.Aside(ctx, cache.ProfileKey(userID), &view, cache.ProfileTTL, func() error {
		user, err := r.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		view = models.ProfileView{
			ID:        user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Avatar:    user.AvatarURL(),
		}
		if user.Profile != nil {
			view.Bio = user.Profile.Bio
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// UpdateProfile applies the non-nil fields. Username is never touched.
func (r *userRepository) UpdateProfile(ctx context.Context, userID uint, update models.ProfileUpdate) error {
	userCols := map[string]any{}
	if update.FirstName != nil {
		userCols["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		userCols["last_name"] = *update.LastName
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		userCols["updated_at"] = now
		// UpdateColumns skips the identity hook, which needs the full row.
		res := tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumns(userCols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", userID)
		}
		if update.Bio != nil {
			return upsertProfile(tx, userID, map[string]any{"bio": *update.Bio, "updated_at": now})
		}
		return nil
	})
	if err != nil {
		return wrapStoreError(err)
	}
	cache.InvalidateProfile(ctx, userID)
	return nil
}

func (r *userRepository) UpdateAvatar(ctx context.Context, userID uint, avatarURL string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.NewNotFoundError("User", userID)
		}
		return upsertProfile(tx, userID, map[string]any{"avatar_url": avatarURL, "updated_at": time.Now()})
	})
	if err != nil {
		return wrapStoreError(err)
	}
	cache.InvalidateProfile(ctx, userID)
	return nil
}

// upsertProfile updates the profile row, creating it for accounts that
// predate profiles.
func upsertProfile(tx *gorm.DB, userID uint, cols map[string]any) error {
	res := tx.Model(&models.Profile{}).Where("user_id = ?", userID).UpdateColumns(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	profile := models.Profile{UserID: userID}
	if bio, ok := cols["bio"].(string); ok {
		profile.Bio = bio
	}
	if avatar, ok := cols["avatar_url"].(string); ok {
		profile.AvatarURL = &avatar
	}
	return tx.Create(&profile).Error
}

type searchRow struct {
	ID                   uint
	Username             string
	Avatar               *string
	ViewerFollowsThem    bool
	PendingRequestStatus *string
}

// Search matches usernames case-insensitively, excluding the viewer, and
// annotates each hit with the viewer's follow edge and sent request.
func (r *userRepository) Search(ctx context.Context, viewerID uint, query string, limit, offset int) ([]models.UserSearchResult, error) {
	limit, offset = clampPage(limit, offset)

	var rows []searchRow
	err := readDB(r.db).WithContext(ctx).
		Table("users").
		Select(`users.id, users.username, profiles.avatar_url AS avatar,
			EXISTS (SELECT 1 FROM follows f WHERE f.follower_id = ? AND f.followee_id = users.id) AS viewer_follows_them,
			(SELECT r.status FROM requests r WHERE r.sender_id = ? AND r.receiver_id = users.id) AS pending_request_status`,
			viewerID, viewerID).
		Joins("LEFT JOIN profiles ON profiles.user_id = users.id").
		Where("users.id <> ?", viewerID).
		Where(`LOWER(users.username) LIKE ? ESCAPE '\'`, likePattern(query)).
		Order("users.username ASC, users.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	results := make([]models.UserSearchResult, 0, len(rows))
	for _, row := range rows {
		res := models.UserSearchResult{
			ID:                row.ID,
			Username:          row.Username,
			ViewerFollowsThem: row.ViewerFollowsThem,
		}
		if row.Avatar != nil {
			res.Avatar = *row.Avatar
		}
		if row.PendingRequestStatus != nil {
			status := models.RequestStatus(*row.PendingRequestStatus)
			res.PendingRequestStatus = &status
		}
		results = append(results, res)
	}
	return results, nil
}

// wrapStoreError keeps AppErrors and wraps everything else as internal.
func wrapStoreError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}
