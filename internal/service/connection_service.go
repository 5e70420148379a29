package service

import (
	"context"

	"circles/internal/middleware"
	"circles/internal/models"
	"circles/internal/observability"
	"circles/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const connectionComponent = "connection_service"

// ConnectionService runs the follow-request state machine and its effects
// on the follower graph. Every mutating operation is one transaction whose
// reads go through the transaction handle.
type ConnectionService struct {
	db *gorm.DB
}

func NewConnectionService(db *gorm.DB) *ConnectionService {
	return &ConnectionService{db: db}
}

type connectionRepos struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	requests repository.RequestRepository
}

func reposFor(db *gorm.DB) connectionRepos {
	return connectionRepos{
		users:    repository.NewUserRepository(db),
		follows:  repository.NewFollowRepository(db),
		requests: repository.NewRequestRepository(db),
	}
}

func (s *ConnectionService) inTx(ctx context.Context, fn func(r connectionRepos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
}

// AcceptResult describes the outcome of AcceptRequest.
type AcceptResult struct {
	Request     *models.Request `json:"request"`
	EdgeCreated bool            `json:"edge_created"`
}

// SendRequest creates the request or resets an existing one to pending.
func (s *ConnectionService) SendRequest(ctx context.Context, senderID, receiverID uint) (req *models.Request, err error) {
	ctx, span := observability.StartSpan(ctx, connectionComponent, "SendRequest",
		attribute.Int64("sender_id", int64(senderID)), attribute.Int64("receiver_id", int64(receiverID)))
	defer func() { observability.EndSpan(span, err) }()

	if senderID == receiverID {
		return nil, models.NewValidationError("Cannot send a request to yourself")
	}

	err = s.inTx(ctx, func(r connectionRepos) error {
		if _, err := r.users.GetByID(ctx, receiverID); err != nil {
			return err
		}
		req, err = r.requests.Upsert(ctx, senderID, receiverID)
		return err
	})
	if err != nil {
		return nil, wrapTxError(err)
	}

	observability.RequestTransitions.WithLabelValues(string(models.RequestStatusPending)).Inc()
	middleware.Logger.InfoContext(ctx, "follow request sent",
		"request_id", req.ID, "sender_id", senderID, "receiver_id", receiverID)
	return req, nil
}

// ListRequests returns everything the user sent and the pending requests
// addressed to them.
func (s *ConnectionService) ListRequests(ctx context.Context, userID uint) (*models.RequestInbox, error) {
	requests := repository.NewRequestRepository(s.db)
	sent, err := requests.ListSent(ctx, userID)
	if err != nil {
		return nil, err
	}
	received, err := requests.ListReceivedPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.RequestInbox{Sent: sent, Received: received}, nil
}

// ResolveRequest sets the status to accepted or rejected. It never touches
// the graph; see AcceptRequest.
func (s *ConnectionService) ResolveRequest(ctx context.Context, receiverID, requestID uint, accept bool) (req *models.Request, err error) {
	ctx, span := observability.StartSpan(ctx, connectionComponent, "ResolveRequest",
		attribute.Int64("request_id", int64(requestID)), attribute.Bool("accept", accept))
	defer func() { observability.EndSpan(span, err) }()

	err = s.inTx(ctx, func(r connectionRepos) error {
		req, err = resolve(ctx, r, receiverID, requestID, accept)
		return err
	})
	if err != nil {
		return nil, wrapTxError(err)
	}

	observability.RequestTransitions.WithLabelValues(string(req.Status)).Inc()
	middleware.Logger.InfoContext(ctx, "follow request resolved",
		"request_id", req.ID, "status", req.Status, "receiver_id", receiverID)
	return req, nil
}

// AcceptRequest marks the request accepted and makes the receiver follow
// the sender, atomically.
func (s *ConnectionService) AcceptRequest(ctx context.Context, receiverID, requestID uint) (res *AcceptResult, err error) {
	ctx, span := observability.StartSpan(ctx, connectionComponent, "AcceptRequest",
		attribute.Int64("request_id", int64(requestID)))
	defer func() { observability.EndSpan(span, err) }()

	res = &AcceptResult{}
	err = s.inTx(ctx, func(r connectionRepos) error {
		req, err := resolve(ctx, r, receiverID, requestID, true)
		if err != nil {
			return err
		}
		res.Request = req
		res.EdgeCreated, err = r.follows.Add(ctx, req.ReceiverID, req.SenderID)
		return err
	})
	if err != nil {
		return nil, wrapTxError(err)
	}

	observability.RequestTransitions.WithLabelValues(string(models.RequestStatusAccepted)).Inc()
	observability.RecordEdgeChange("accept", res.EdgeCreated)
	middleware.Logger.InfoContext(ctx, "follow request accepted",
		"request_id", requestID, "receiver_id", receiverID, "edge_created", res.EdgeCreated)
	return res, nil
}

func resolve(ctx context.Context, r connectionRepos, receiverID, requestID uint, accept bool) (*models.Request, error) {
	req, err := r.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != receiverID {
		return nil, models.NewForbiddenError("Only the receiver can resolve this request")
	}
	status := models.RequestStatusRejected
	if accept {
		status = models.RequestStatusAccepted
	}
	if err := r.requests.SetStatus(ctx, requestID, status); err != nil {
		return nil, err
	}
	req.Status = status
	return req, nil
}

// DeleteRequest withdraws a request. Only its sender may do so.
func (s *ConnectionService) DeleteRequest(ctx context.Context, requesterID, requestID uint) (req *models.Request, err error) {
	ctx, span := observability.StartSpan(ctx, connectionComponent, "DeleteRequest",
		attribute.Int64("request_id", int64(requestID)))
	defer func() { observability.EndSpan(span, err) }()

	err = s.inTx(ctx, func(r connectionRepos) error {
		req, err = r.requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.SenderID != requesterID {
			return models.NewForbiddenError("Only the sender can delete this request")
		}
		_, err = r.requests.Delete(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, wrapTxError(err)
	}
	middleware.Logger.InfoContext(ctx, "follow request deleted", "request_id", requestID, "sender_id", requesterID)
	return req, nil
}

// DeleteRequestsByCategory removes all of the requester's sent requests
// with the given status.
func (s *ConnectionService) DeleteRequestsByCategory(ctx context.Context, requesterID uint, status string) (int64, error) {
	parsed, err := models.ParseRequestStatus(status)
	if err != nil {
		return 0, err
	}
	n, err := repository.NewRequestRepository(s.db).DeleteBySenderAndStatus(ctx, requesterID, parsed)
	if err != nil {
		return 0, err
	}
	middleware.Logger.InfoContext(ctx, "follow requests cleared", "sender_id", requesterID, "status", parsed, "count", n)
	return n, nil
}

// RemoveFollower drops followerID -> userID and rejects followerID's
// requests to userID so they do not linger as accepted.
func (s *ConnectionService) RemoveFollower(ctx context.Context, userID, followerID uint) (removed bool, err error) {
	ctx, span := observability.StartSpan(ctx, connectionComponent, "RemoveFollower",
		attribute.Int64("follower_id", int64(followerID)))
	defer func() { observability.EndSpan(span, err) }()

	var rejected int64
	err = s.inTx(ctx, func(r connectionRepos) error {
		if removed, err = r.follows.Remove(ctx, followerID, userID); err != nil {
			return err
		}
		rejected, err = r.requests.RejectFrom(ctx, followerID, userID)
		return err
	})
	if err != nil {
		return false, wrapTxError(err)
	}

	observability.RecordEdgeChange("remove_follower", removed)
	if rejected > 0 {
		observability.RequestTransitions.WithLabelValues(string(models.RequestStatusRejected)).Add(float64(rejected))
	}
	middleware.Logger.InfoContext(ctx, "follower removed",
		"user_id", userID, "follower_id", followerID, "removed", removed, "requests_rejected", rejected)
	return removed, nil
}

// FollowBack makes userID follow followerID, who must already follow
// userID. A pending request userID -> followerID becomes redundant and is
// deleted when the edge is created.
func (s *ConnectionService) FollowBack(ctx context.Context, userID, followerID uint) (created bool, err error) {
	ctx, span := observability.StartSpan(ctx, connectionComponent, "FollowBack",
		attribute.Int64("follower_id", int64(followerID)))
	defer func() { observability.EndSpan(span, err) }()

	err = s.inTx(ctx, func(r connectionRepos) error {
		follows, err := r.follows.Exists(ctx, followerID, userID)
		if err != nil {
			return err
		}
		if !follows {
			return models.NewNotFoundError("Follower", followerID)
		}
		if created, err = r.follows.Add(ctx, userID, followerID); err != nil {
			return err
		}
		if !created {
			return nil
		}
		pending := models.RequestStatusPending
		_, err = r.requests.DeleteBetween(ctx, userID, followerID, &pending)
		return err
	})
	if err != nil {
		return false, wrapTxError(err)
	}

	observability.RecordEdgeChange("follow_back", created)
	middleware.Logger.InfoContext(ctx, "followed back", "user_id", userID, "follower_id", followerID, "created", created)
	return created, nil
}

// Unfollow drops userID -> followingID and any request between them in
// that direction, so a later request starts fresh.
func (s *ConnectionService) Unfollow(ctx context.Context, userID, followingID uint) (removed bool, err error) {
	ctx, span := observability.StartSpan(ctx, connectionComponent, "Unfollow",
		attribute.Int64("following_id", int64(followingID)))
	defer func() { observability.EndSpan(span, err) }()

	err = s.inTx(ctx, func(r connectionRepos) error {
		if removed, err = r.follows.Remove(ctx, userID, followingID); err != nil {
			return err
		}
		_, err = r.requests.DeleteBetween(ctx, userID, followingID, nil)
		return err
	})
	if err != nil {
		return false, wrapTxError(err)
	}

	observability.RecordEdgeChange("unfollow", removed)
	middleware.Logger.InfoContext(ctx, "unfollowed", "user_id", userID, "following_id", followingID, "removed", removed)
	return removed, nil
}

func (s *ConnectionService) GetFollowers(ctx context.Context, userID uint) ([]models.FollowerEntry, error) {
	return repository.NewFollowRepository(s.db).ListFollowers(ctx, userID)
}

func (s *ConnectionService) GetFollowing(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	return repository.NewFollowRepository(s.db).ListFollowing(ctx, userID)
}

// wrapTxError keeps AppErrors raised inside a transaction and wraps commit
// or driver failures.
func wrapTxError(err error) error {
	if models.ErrorCode(err) != "" {
		return err
	}
	return models.NewInternalError(err)
}
