package server

import (
	"circles/internal/middleware"
	"circles/internal/models"
	"circles/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a local account with a password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string,first_name=string,last_name=string} true "Signup request"
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := s.authService.Signup(c.UserContext(), service.SignupInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// LoginLocal handles POST /api/auth/login/local
// @Summary Local login
// @Description Authenticate with username and password and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Login credentials"
// @Success 200 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login/local [post]
func (s *Server) LoginLocal(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := s.authService.LoginLocal(c.UserContext(), service.LocalLoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// LoginGoogle handles POST /api/auth/login/google
// @Summary Google login
// @Description Find or create the federated account for a Google id and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{google_id=string,username=string,first_name=string,last_name=string,profile_img=string} true "Google identity"
// @Success 200 {object} service.AuthResult
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/login/google [post]
func (s *Server) LoginGoogle(c *fiber.Ctx) error {
	var req struct {
		GoogleID   string `json:"google_id"`
		Username   string `json:"username"`
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		ProfileImg string `json:"profile_img"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := s.authService.LoginGoogle(c.UserContext(), service.GoogleLoginInput{
		GoogleID:   req.GoogleID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		ProfileImg: req.ProfileImg,
	})
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(result)
}

// Logout handles POST /api/auth/logout by revoking the presented token.
// @Summary Logout
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*middleware.Claims)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}
	if err := s.tokens.Revoke(c.UserContext(), claims); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set headers
// on a websocket upgrade, so the client trades its bearer token for a
// short-lived single-use ticket passed as ?ticket=.
// @Summary Issue websocket ticket
// @Tags realtime
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket, err := s.tokens.IssueWSTicket(c.UserContext(), currentUserID(c))
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Realtime tickets are unavailable",
		})
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(middleware.WSTicketTTL.Seconds()),
	})
}
