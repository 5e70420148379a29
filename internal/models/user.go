// Package models contains data structures for the application's domain models.
package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrIdentityInvariant is returned when a user carries both or neither of a
// password hash and an external identity id.
var ErrIdentityInvariant = errors.New("user must have exactly one of password hash or external id")

// IdentityKind tags the two ways an account can authenticate.
type IdentityKind string

const (
	IdentityLocal     IdentityKind = "local"
	IdentityFederated IdentityKind = "federated"
)

// Identity is the resolved credential of a user: either a local password
// hash or a federated external id, never both.
type Identity struct {
	Kind         IdentityKind
	PasswordHash string
	ExternalID   string
}

// LocalIdentity builds a password-backed identity.
func LocalIdentity(passwordHash string) Identity {
	return Identity{Kind: IdentityLocal, PasswordHash: passwordHash}
}

// FederatedIdentity builds an identity owned by an external provider.
func FederatedIdentity(externalID string) Identity {
	return Identity{Kind: IdentityFederated, ExternalID: externalID}
}

// User represents an account. PasswordHash and ExternalID are stored as
// nullable columns and kept mutually exclusive by BeforeSave.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:30;not null;index:idx_users_local_username,unique,where:password_hash IS NOT NULL" json:"username"`
	FirstName    string    `gorm:"size:50;not null" json:"first_name"`
	LastName     string    `gorm:"size:50;not null" json:"last_name"`
	PasswordHash *string   `gorm:"column:password_hash;check:chk_users_identity,(password_hash IS NULL) <> (external_id IS NULL)" json:"-"`
	ExternalID   *string   `gorm:"column:external_id;uniqueIndex" json:"-"`
	Profile      *Profile  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser returns a user bound to the given identity.
func NewUser(username, firstName, lastName string, identity Identity) *User {
	u := &User{Username: username, FirstName: firstName, LastName: lastName}
	u.SetIdentity(identity)
	return u
}

// SetIdentity replaces the credential columns with the given variant.
func (u *User) SetIdentity(identity Identity) {
	u.PasswordHash = nil
	u.ExternalID = nil
	switch identity.Kind {
	case IdentityLocal:
		hash := identity.PasswordHash
		u.PasswordHash = &hash
	case IdentityFederated:
		id := identity.ExternalID
		u.ExternalID = &id
	}
}

// Identity returns the tagged credential of the user.
func (u *User) Identity() (Identity, error) {
	hasPassword := u.PasswordHash != nil && *u.PasswordHash != ""
	hasExternal := u.ExternalID != nil && *u.ExternalID != ""
	switch {
	case hasPassword && !hasExternal:
		return LocalIdentity(*u.PasswordHash), nil
	case hasExternal && !hasPassword:
		return FederatedIdentity(*u.ExternalID), nil
	default:
		return Identity{}, ErrIdentityInvariant
	}
}

// IsLocal reports whether the user signs in with a password.
func (u *User) IsLocal() bool {
	id, err := u.Identity()
	return err == nil && id.Kind == IdentityLocal
}

// BeforeSave enforces the identity invariant on every write.
func (u *User) BeforeSave(_ *gorm.DB) error {
	if _, err := u.Identity(); err != nil {
		return err
	}
	return nil
}

// AvatarURL returns the profile avatar or "" when none is set.
func (u *User) AvatarURL() string {
	if u.Profile == nil || u.Profile.AvatarURL == nil {
		return ""
	}
	return *u.Profile.AvatarURL
}

// Profile is owned 1:1 by a User and created in the same transaction.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"-"`
	Bio       string    `gorm:"type:text;not null;default:''" json:"bio"`
	AvatarURL *string   `gorm:"column:avatar_url" json:"avatar,omitempty"`
	UpdatedAt time.Time `json:"-"`
}

// UserSummary is the public identity embedded in relationship and content
// listings.
type UserSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar,omitempty"`
}

// Summary projects the user to its public identity.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Avatar:    u.AvatarURL(),
	}
}

// ProfileView is the owner's view of their account.
type ProfileView struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	Avatar    string `json:"avatar,omitempty"`
}

// ProfileUpdate carries the mutable profile fields; nil means unchanged.
type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
}

// UserSearchResult is one hit of a user search, annotated with the
// searcher's relationship to that user.
type UserSearchResult struct {
	ID                   uint           `json:"id"`
	Username             string         `json:"username"`
	Avatar               string         `json:"avatar,omitempty"`
	ViewerFollowsThem    bool           `json:"viewer_follows_them"`
	PendingRequestStatus *RequestStatus `json:"pending_request_status,omitempty"`
}

// PublicProfile is another user's profile as seen by the viewer.
type PublicProfile struct {
	ProfileView
	FollowerCount     int64          `json:"follower_count"`
	FollowingCount    int64          `json:"following_count"`
	ViewerFollowsThem bool           `json:"viewer_follows_them"`
	TheyFollowViewer  bool           `json:"they_follow_viewer"`
	RequestStatus     *RequestStatus `json:"request_status,omitempty"`
}
