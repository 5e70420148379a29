package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"strings"

	"circles/internal/config"
	"circles/internal/models"
	"circles/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 10
	AvatarSize                  = 256
	PostImageMaxSize            = 2048
	WebPQuality                 = 75
)

// Upload is a raw image as received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImageStore turns uploads into stored images and returns their public URL.
type ImageStore interface {
	StoreAvatar(ctx context.Context, userID uint, in Upload) (string, error)
	StorePostImage(ctx context.Context, userID uint, in Upload) (string, error)
}

// MediaService validates, normalizes and stores uploaded images as WebP.
type MediaService struct {
	store              storage.BlobStore
	maxUploadSizeBytes int64
}

func NewMediaService(store storage.BlobStore, cfg *config.Config) *MediaService {
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	if cfg != nil && cfg.ImageMaxUploadSizeMB > 0 {
		maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
	}
	return &MediaService{
		store:              store,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// StoreAvatar center-crops the image to a square of AvatarSize pixels.
func (s *MediaService) StoreAvatar(ctx context.Context, userID uint, in Upload) (string, error) {
	decoded, err := s.decode(userID, in)
	if err != nil {
		return "", err
	}
	b := decoded.Bounds()
	side := min(b.Dx(), b.Dy())
	square := cropToRect(decoded, b.Min.X+(b.Dx()-side)/2, b.Min.Y+(b.Dy()-side)/2, side, side)
	return s.put(ctx, "avatars", resizeToFit(square, AvatarSize, AvatarSize))
}

// StorePostImage scales the image to fit PostImageMaxSize, keeping its ratio.
func (s *MediaService) StorePostImage(ctx context.Context, userID uint, in Upload) (string, error) {
	decoded, err := s.decode(userID, in)
	if err != nil {
		return "", err
	}
	return s.put(ctx, "posts", resizeToFit(decoded, PostImageMaxSize, PostImageMaxSize))
}

func (s *MediaService) decode(userID uint, in Upload) (image.Image, error) {
	if userID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	sourceMimeType := decodedFormatToMime(format)
	if sourceMimeType == "" {
		return nil, models.NewValidationError("Unsupported image format")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceMimeType) {
		return nil, models.NewValidationError("Image content type mismatch")
	}
	return decoded, nil
}

func (s *MediaService) put(ctx context.Context, prefix string, img image.Image) (string, error) {
	encoded, err := encodeWebP(img, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	url, err := s.store.Put(ctx, storage.NewKey(prefix, "webp"), encoded)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return url, nil
}

func cropToRect(src image.Image, x, y, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality float32) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
