package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetRequests handles GET /api/requests
// @Summary List sent and received follow requests
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.RequestInbox
// @Router /requests [get]
func (s *Server) GetRequests(c *fiber.Ctx) error {
	inbox, err := s.connectionService.ListRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inbox)
}

// SendRequest handles POST /api/requests
// @Summary Send (or re-send) a follow request
// @Tags requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{receiver_id=int} true "Receiver"
// @Success 201 {object} models.Request
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /requests [post]
func (s *Server) SendRequest(c *fiber.Ctx) error {
	var req struct {
		ReceiverID uint `json:"receiver_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ReceiverID == 0 {
		return badRequest(c, "receiver_id is required")
	}

	userID := currentUserID(c)
	request, err := s.connectionService.SendRequest(c.UserContext(), userID, req.ReceiverID)
	if err != nil {
		return respondError(c, err)
	}

	s.publishUserEvent(c.UserContext(), request.ReceiverID, EventRequestReceived, map[string]interface{}{
		"request_id": request.ID,
		"sender_id":  userID,
	})
	return c.Status(fiber.StatusCreated).JSON(request)
}

// ResolveRequest handles PUT /api/requests. It only records the decision;
// accepting through POST /api/followers also creates the follow edge.
// @Summary Accept or reject a received request
// @Tags requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{request_id=int,accept=bool} true "Decision"
// @Success 200 {object} models.Request
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /requests [put]
func (s *Server) ResolveRequest(c *fiber.Ctx) error {
	var req struct {
		RequestID uint  `json:"request_id"`
		Accept    *bool `json:"accept"`
	}
	if err := c.BodyParser(&req); err != nil || req.RequestID == 0 || req.Accept == nil {
		return badRequest(c, "request_id and accept are required")
	}

	request, err := s.connectionService.ResolveRequest(c.UserContext(), currentUserID(c), req.RequestID, *req.Accept)
	if err != nil {
		return respondError(c, err)
	}

	event := EventRequestRejected
	if *req.Accept {
		event = EventRequestAccepted
	}
	s.publishUserEvent(c.UserContext(), request.SenderID, event, map[string]interface{}{
		"request_id":  request.ID,
		"receiver_id": request.ReceiverID,
	})
	return c.JSON(request)
}

// DeleteRequest handles DELETE /api/requests/:id
// @Summary Withdraw a sent request
// @Tags requests
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /requests/{id} [delete]
func (s *Server) DeleteRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	request, err := s.connectionService.DeleteRequest(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}

	s.publishUserEvent(c.UserContext(), request.ReceiverID, EventRequestWithdrawn, map[string]interface{}{
		"request_id": request.ID,
		"sender_id":  request.SenderID,
	})
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteRequestsByCategory handles DELETE /api/requests/category/:status
// @Summary Clear sent requests with a status
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Param status path string true "pending, accepted or rejected"
// @Success 200 {object} object{deleted=int}
// @Failure 400 {object} models.ErrorResponse
// @Router /requests/category/{status} [delete]
func (s *Server) DeleteRequestsByCategory(c *fiber.Ctx) error {
	n, err := s.connectionService.DeleteRequestsByCategory(c.UserContext(), currentUserID(c), c.Params("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}

// GetFollowers handles GET /api/followers
// @Summary List followers with follow-back flags
// @Tags followers
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.FollowerEntry
// @Router /followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	followers, err := s.connectionService.GetFollowers(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(followers)
}

// AcceptRequest handles POST /api/followers: accept a received request and
// follow its sender in one step.
// @Summary Accept a request and follow the sender
// @Tags followers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{request_id=int} true "Request"
// @Success 200 {object} service.AcceptResult
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /followers [post]
func (s *Server) AcceptRequest(c *fiber.Ctx) error {
	var req struct {
		RequestID uint `json:"request_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.RequestID == 0 {
		return badRequest(c, "request_id is required")
	}

	result, err := s.connectionService.AcceptRequest(c.UserContext(), currentUserID(c), req.RequestID)
	if err != nil {
		return respondError(c, err)
	}

	s.publishUserEvent(c.UserContext(), result.Request.SenderID, EventRequestAccepted, map[string]interface{}{
		"request_id":   result.Request.ID,
		"receiver_id":  result.Request.ReceiverID,
		"edge_created": result.EdgeCreated,
	})
	return c.JSON(result)
}

// RemoveFollower handles DELETE /api/followers/:id
// @Summary Remove a follower
// @Tags followers
// @Security BearerAuth
// @Produce json
// @Param id path int true "Follower user ID"
// @Success 200 {object} object{removed=bool}
// @Router /followers/{id} [delete]
func (s *Server) RemoveFollower(c *fiber.Ctx) error {
	followerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	userID := currentUserID(c)
	removed, err := s.connectionService.RemoveFollower(c.UserContext(), userID, followerID)
	if err != nil {
		return respondError(c, err)
	}

	if removed {
		s.publishUserEvent(c.UserContext(), followerID, EventFollowerRemoved, map[string]interface{}{
			"user_id": userID,
		})
	}
	return c.JSON(fiber.Map{"removed": removed})
}

// FollowBack handles POST /api/followers/:id/follow-back
// @Summary Follow a follower back
// @Tags followers
// @Security BearerAuth
// @Produce json
// @Param id path int true "Follower user ID"
// @Success 200 {object} object{created=bool}
// @Failure 404 {object} models.ErrorResponse
// @Router /followers/{id}/follow-back [post]
func (s *Server) FollowBack(c *fiber.Ctx) error {
	followerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	userID := currentUserID(c)
	created, err := s.connectionService.FollowBack(c.UserContext(), userID, followerID)
	if err != nil {
		return respondError(c, err)
	}

	if created {
		s.publishUserEvent(c.UserContext(), followerID, EventFollowedBack, map[string]interface{}{
			"user_id": userID,
		})
	}
	return c.JSON(fiber.Map{"created": created})
}

// GetFollowing handles GET /api/following
// @Summary List followed users
// @Tags following
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.UserSummary
// @Router /following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	following, err := s.connectionService.GetFollowing(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(following)
}

// Unfollow handles DELETE /api/following/:id
// @Summary Stop following a user
// @Tags following
// @Security BearerAuth
// @Produce json
// @Param id path int true "Followed user ID"
// @Success 200 {object} object{removed=bool}
// @Router /following/{id} [delete]
func (s *Server) Unfollow(c *fiber.Ctx) error {
	followingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	userID := currentUserID(c)
	removed, err := s.connectionService.Unfollow(c.UserContext(), userID, followingID)
	if err != nil {
		return respondError(c, err)
	}

	if removed {
		s.publishUserEvent(c.UserContext(), followingID, EventUnfollowed, map[string]interface{}{
			"user_id": userID,
		})
	}
	return c.JSON(fiber.Map{"removed": removed})
}
