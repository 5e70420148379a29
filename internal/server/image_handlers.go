package server

import (
	"errors"
	"io"
	"strings"

	"circles/internal/service"

	"github.com/gofiber/fiber/v2"
)

var errNoUpload = errors.New("no file uploaded")

// isMultipart reports whether the request carries a multipart form.
func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

// readUpload loads the named multipart file into memory. It returns
// errNoUpload when the request has no such file.
func readUpload(c *fiber.Ctx, field string) (service.Upload, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return service.Upload{}, errNoUpload
	}

	src, err := file.Open()
	if err != nil {
		return service.Upload{}, err
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return service.Upload{}, err
	}

	return service.Upload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// UploadAvatar handles POST /api/profile/avatar (multipart field "image").
// @Summary Upload avatar
// @Tags profile
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Avatar image (jpeg, png, gif or webp)"
// @Success 200 {object} models.ProfileView
// @Failure 400 {object} models.ErrorResponse
// @Router /profile/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	upload, err := readUpload(c, "image")
	if err != nil {
		if errors.Is(err, errNoUpload) {
			return badRequest(c, "No file uploaded")
		}
		return badRequest(c, "Unable to read uploaded file")
	}

	profile, err := s.userService.UpdateAvatar(c.UserContext(), currentUserID(c), upload)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}
