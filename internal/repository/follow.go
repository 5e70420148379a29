package repository

import (
	"context"
	"errors"

	"circles/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository stores the directed follower graph.
type FollowRepository interface {
	Add(ctx context.Context, followerID, followeeID uint) (bool, error)
	Remove(ctx context.Context, followerID, followeeID uint) (bool, error)
	Exists(ctx context.Context, followerID, followeeID uint) (bool, error)
	ListFollowers(ctx context.Context, userID uint) ([]models.FollowerEntry, error)
	ListFollowing(ctx context.Context, userID uint) ([]models.UserSummary, error)
	Counts(ctx context.Context, userID uint) (followers int64, following int64, err error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a FollowRepository bound to db, which may be
// a transaction handle.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// Add inserts the edge unless it already exists. The bool reports whether a
// row was created.
func (r *followRepository) Add(ctx context.Context, followerID, followeeID uint) (bool, error) {
	if followerID == followeeID {
		return false, models.NewValidationError(models.ErrSelfFollow.Error())
	}
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID})
	if res.Error != nil {
		if errors.Is(res.Error, models.ErrSelfFollow) {
			return false, models.NewValidationError(res.Error.Error())
		}
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Remove deletes the edge. The bool reports whether a row was removed.
func (r *followRepository) Remove(ctx context.Context, followerID, followeeID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

type followerRow struct {
	ID          uint
	Username    string
	FirstName   string
	LastName    string
	Avatar      *string
	FollowsBack bool
}

// ListFollowers returns the users following userID, newest edge first, each
// flagged with whether userID follows them back.
func (r *followRepository) ListFollowers(ctx context.Context, userID uint) ([]models.FollowerEntry, error) {
	var rows []followerRow
	err := readDB(r.db).WithContext(ctx).
		Table("follows").
		Select(summaryColumns+`,
			EXISTS (SELECT 1 FROM follows fb WHERE fb.follower_id = ? AND fb.followee_id = users.id) AS follows_back`,
			userID).
		Joins("JOIN users ON users.id = follows.follower_id").
		Joins("LEFT JOIN profiles ON profiles.user_id = users.id").
		Where("follows.followee_id = ?", userID).
		Order("follows.created_at DESC, users.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	entries := make([]models.FollowerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.FollowerEntry{
			User: summaryRow{
				ID:        row.ID,
				Username:  row.Username,
				FirstName: row.FirstName,
				LastName:  row.LastName,
				Avatar:    row.Avatar,
			}.summary(),
			FollowsBack: row.FollowsBack,
		})
	}
	return entries, nil
}

// ListFollowing returns the users userID follows, newest edge first.
func (r *followRepository) ListFollowing(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	var rows []summaryRow
	err := readDB(r.db).WithContext(ctx).
		Table("follows").
		Select(summaryColumns).
		Joins("JOIN users ON users.id = follows.followee_id").
		Joins("LEFT JOIN profiles ON profiles.user_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at DESC, users.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	users := make([]models.UserSummary, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.summary())
	}
	return users, nil
}

func (r *followRepository) Counts(ctx context.Context, userID uint) (int64, int64, error) {
	var counts struct {
		Followers int64
		Following int64
	}
	err := readDB(r.db).WithContext(ctx).
		Raw(`SELECT
			(SELECT COUNT(*) FROM follows WHERE followee_id = ?) AS followers,
			(SELECT COUNT(*) FROM follows WHERE follower_id = ?) AS following`,
			userID, userID).
		Scan(&counts).Error
	if err != nil {
		return 0, 0, models.NewInternalError(err)
	}
	return counts.Followers, counts.Following, nil
}
