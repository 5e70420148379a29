// Package middleware provides authentication, rate limiting, logging and
// tracing middleware for the application.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"circles/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "circles-api"
	TokenAudience = "circles-client"

	wsTicketPrefix  = "ws_ticket:"
	blacklistPrefix = "blacklist:"

	// WSTicketTTL bounds how long a websocket ticket can wait to be redeemed.
	WSTicketTTL = 30 * time.Second
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrRevokedToken  = errors.New("token has been revoked")
	ErrInvalidTicket = errors.New("invalid or expired websocket ticket")
)

// Claims is the payload of an access token. The subject is the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return uint(id), nil
}

// TokenManager issues and verifies HS256 access tokens and single-use
// websocket tickets. Revocation and tickets need Redis; without it tokens
// still verify but cannot be revoked.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
	now    func() time.Time
}

// NewTokenManager returns a TokenManager signing with secret.
func NewTokenManager(secret string, ttl time.Duration, rdb *redis.Client) *TokenManager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, rdb: rdb, now: time.Now}
}

// Issue signs a token for the user.
func (m *TokenManager) Issue(userID uint, username string) (string, error) {
	if len(m.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := m.now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8]),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifies signature, issuer, audience and expiry, then checks the
// revocation list.
func (m *TokenManager) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}

	if claims.ID != "" && m.rdb != nil {
		n, err := m.rdb.Exists(ctx, blacklistPrefix+claims.ID).Result()
		if err == nil && n > 0 {
			return nil, ErrRevokedToken
		}
	}
	return claims, nil
}

// Revoke blacklists the token id until the token would have expired anyway.
func (m *TokenManager) Revoke(ctx context.Context, claims *Claims) error {
	if m.rdb == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(m.now()); remaining > 0 {
			ttl = remaining
		}
	}
	return m.rdb.Set(ctx, blacklistPrefix+claims.ID, "1", ttl).Err()
}

// IssueWSTicket stores a random single-use ticket for the user.
func (m *TokenManager) IssueWSTicket(ctx context.Context, userID uint) (string, error) {
	if m.rdb == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	ticket := uuid.New().String()
	if err := m.rdb.Set(ctx, wsTicketPrefix+ticket, userID, WSTicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// RedeemWSTicket consumes a ticket atomically and returns its owner.
func (m *TokenManager) RedeemWSTicket(ctx context.Context, ticket string) (uint, error) {
	if m.rdb == nil || ticket == "" {
		return 0, ErrInvalidTicket
	}
	val, err := m.rdb.GetDel(ctx, wsTicketPrefix+ticket).Result()
	if err != nil {
		return 0, ErrInvalidTicket
	}
	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, ErrInvalidTicket
	}
	return uint(id), nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// AuthRequired enforces a valid bearer token. Websocket paths under
// /api/ws may instead present a ticket query parameter.
func (m *TokenManager) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Nested groups install this twice; a ticket can only be redeemed once.
		if _, ok := c.Locals("userID").(uint); ok {
			return c.Next()
		}
		if strings.HasPrefix(c.Path(), "/api/ws") && c.Query("ticket") != "" {
			userID, err := m.RedeemWSTicket(c.UserContext(), c.Query("ticket"))
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			setUser(c, userID)
			return c.Next()
		}

		tokenString := BearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := m.Parse(c.UserContext(), tokenString)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, ErrRevokedToken) {
				msg = "Token has been revoked"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}

		userID, _ := claims.UserID()
		c.Locals("claims", claims)
		setUser(c, userID)
		return c.Next()
	}
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
	c.SetUserContext(ctx)
}
