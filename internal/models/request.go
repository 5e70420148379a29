package models

import "time"

// RequestStatus is the state of a follow request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// ParseRequestStatus validates a status coming from a client.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusRejected:
		return RequestStatus(s), nil
	}
	return "", NewValidationError("Unknown request status: " + s)
}

// Request is a follow offer from SenderID to ReceiverID. There is at most
// one row per ordered pair; resending resets Status to pending.
type Request struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	SenderID   uint          `gorm:"not null;uniqueIndex:idx_requests_pair" json:"sender_id"`
	ReceiverID uint          `gorm:"not null;uniqueIndex:idx_requests_pair;index" json:"receiver_id"`
	Status     RequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`

	Sender   *User `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE" json:"receiver,omitempty"`
}

// TableName specifies the table name for GORM
func (Request) TableName() string {
	return "requests"
}

// SentRequest is a request as listed to its sender.
type SentRequest struct {
	ID        uint          `json:"id"`
	Receiver  UserSummary   `json:"receiver"`
	Status    RequestStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ReceivedRequest is a pending request as listed to its receiver.
type ReceivedRequest struct {
	ID        uint        `json:"id"`
	Sender    UserSummary `json:"sender"`
	CreatedAt time.Time   `json:"created_at"`
}

// RequestInbox groups a user's requests.
type RequestInbox struct {
	Sent     []SentRequest     `json:"sent"`
	Received []ReceivedRequest `json:"received"`
}
