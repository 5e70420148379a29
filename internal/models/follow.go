package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrSelfFollow is returned when an edge would point at its own source.
var ErrSelfFollow = errors.New("a user cannot follow themselves")

// Follow is the directed edge "FollowerID follows FolloweeID".
type Follow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false;check:chk_follows_no_self,follower_id <> followee_id" json:"follower_id"`
	FolloweeID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"followee_id"`
	Follower   User      `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"-"`
	Followee   User      `gorm:"foreignKey:FolloweeID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

func (f *Follow) BeforeCreate(_ *gorm.DB) error {
	if f.FollowerID == f.FolloweeID {
		return ErrSelfFollow
	}
	return nil
}

// FollowerEntry is one row of a user's follower list.
type FollowerEntry struct {
	User        UserSummary `json:"user"`
	FollowsBack bool        `json:"follows_back"`
}
