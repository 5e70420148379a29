package models

import "time"

// Visibility restricts the audience of a post.
type Visibility string

const (
	VisibilityAll                Visibility = "all"
	VisibilityFollowersFollowing Visibility = "followers-following"
)

// ParseVisibility maps client input to a Visibility. Empty means all.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(s) {
	case "":
		return VisibilityAll, nil
	case VisibilityAll, VisibilityFollowersFollowing:
		return Visibility(s), nil
	}
	return "", NewValidationError("Unknown visibility: " + s)
}

// Post is authored content. LikeCount is maintained by the like and unlike
// statements; Liked is computed per viewer and never persisted.
type Post struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	AuthorID   uint       `gorm:"not null;index" json:"author_id"`
	Author     *User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Content    string     `gorm:"type:text;not null;default:''" json:"content"`
	ImageURL   *string    `gorm:"column:image_url" json:"image_url,omitempty"`
	Visibility Visibility `gorm:"type:varchar(32);not null;default:'all'" json:"visibility"`
	LikeCount  int        `gorm:"not null;default:0" json:"like_count"`
	Liked      bool       `gorm:"->;-:migration" json:"liked"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// PostLike records that UserID likes PostID.
type PostLike struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"post_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post      Post      `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (PostLike) TableName() string {
	return "post_likes"
}

// PostDraft is the input of CreatePost.
type PostDraft struct {
	Content    string
	ImageURL   *string
	Visibility Visibility
}
