package repository

import (
	"context"
	"errors"
	"time"

	"circles/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestRepository stores follow requests, one row per ordered pair.
type RequestRepository interface {
	Upsert(ctx context.Context, senderID, receiverID uint) (*models.Request, error)
	GetByID(ctx context.Context, id uint) (*models.Request, error)
	GetBetween(ctx context.Context, senderID, receiverID uint) (*models.Request, error)
	SetStatus(ctx context.Context, id uint, status models.RequestStatus) error
	RejectFrom(ctx context.Context, senderID, receiverID uint) (int64, error)
	DeleteBetween(ctx context.Context, senderID, receiverID uint, status *models.RequestStatus) (int64, error)
	Delete(ctx context.Context, id uint) (bool, error)
	DeleteBySenderAndStatus(ctx context.Context, senderID uint, status models.RequestStatus) (int64, error)
	ListSent(ctx context.Context, senderID uint) ([]models.SentRequest, error)
	ListReceivedPending(ctx context.Context, receiverID uint) ([]models.ReceivedRequest, error)
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository returns a RequestRepository bound to db, which may be
// a transaction handle.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

// Upsert creates the request or, when the pair already has one, resets it
// to pending.
func (r *requestRepository) Upsert(ctx context.Context, senderID, receiverID uint) (*models.Request, error) {
	now := time.Now()
	req := models.Request{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.RequestStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "sender_id"}, {Name: "receiver_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"status":     models.RequestStatusPending,
				"updated_at": now,
			}),
		}).
		Create(&req).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	// Read back from the primary; the upsert may have kept an older row.
	var stored models.Request
	err = r.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		First(&stored).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &stored, nil
}

func (r *requestRepository) GetByID(ctx context.Context, id uint) (*models.Request, error) {
	var req models.Request
	if err := readDB(r.db).WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

// GetBetween returns nil, nil when the pair has no request.
func (r *requestRepository) GetBetween(ctx context.Context, senderID, receiverID uint) (*models.Request, error) {
	var req models.Request
	err := readDB(r.db).WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *requestRepository) SetStatus(ctx context.Context, id uint, status models.RequestStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Request", id)
	}
	return nil
}

// RejectFrom marks every request from senderID to receiverID rejected.
func (r *requestRepository) RejectFrom(ctx context.Context, senderID, receiverID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Updates(map[string]any{"status": models.RequestStatusRejected, "updated_at": time.Now()})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteBetween removes the pair's request, optionally only when it has the
// given status.
func (r *requestRepository) DeleteBetween(ctx context.Context, senderID, receiverID uint, status *models.RequestStatus) (int64, error) {
	q := r.db.WithContext(ctx).Where("sender_id = ? AND receiver_id = ?", senderID, receiverID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	res := q.Delete(&models.Request{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *requestRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Request{}, id)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *requestRepository) DeleteBySenderAndStatus(ctx context.Context, senderID uint, status models.RequestStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("sender_id = ? AND status = ?", senderID, status).
		Delete(&models.Request{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// ListSent returns every request the user sent, most recently updated first.
func (r *requestRepository) ListSent(ctx context.Context, senderID uint) ([]models.SentRequest, error) {
	var reqs []models.Request
	err := readDB(r.db).WithContext(ctx).
		Preload("Receiver.Profile").
		Where("sender_id = ?", senderID).
		Order("updated_at DESC, id DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	sent := make([]models.SentRequest, 0, len(reqs))
	for _, req := range reqs {
		entry := models.SentRequest{ID: req.ID, Status: req.Status, UpdatedAt: req.UpdatedAt}
		if req.Receiver != nil {
			entry.Receiver = req.Receiver.Summary()
		}
		sent = append(sent, entry)
	}
	return sent, nil
}

// ListReceivedPending returns the pending requests addressed to the user,
// newest first. Resolved requests are not listed to the receiver.
func (r *requestRepository) ListReceivedPending(ctx context.Context, receiverID uint) ([]models.ReceivedRequest, error) {
	var reqs []models.Request
	err := readDB(r.db).WithContext(ctx).
		Preload("Sender.Profile").
		Where("receiver_id = ? AND status = ?", receiverID, models.RequestStatusPending).
		Order("updated_at DESC, id DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	received := make([]models.ReceivedRequest, 0, len(reqs))
	for _, req := range reqs {
		entry := models.ReceivedRequest{ID: req.ID, CreatedAt: req.CreatedAt}
		if req.Sender != nil {
			entry.Sender = req.Sender.Summary()
		}
		received = append(received, entry)
	}
	return received, nil
}
