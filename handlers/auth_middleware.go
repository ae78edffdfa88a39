package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ticketscan/scan-backend/shared"
)

const (
	authServiceName = "auth-middleware"
	userIDLocal     = "user_id"
)

// Claims are issued by the session layer; only UID is consumed here
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token in the session layer's format
func GenerateToken(uid uuid.UUID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:   uid.String(),
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// AuthMiddleware validates the bearer token and stores the user id in c.Locals
func AuthMiddleware(secret string) fiber.Handler {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return rejectAuth(c, "Authorization header required", nil)
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return rejectAuth(c, "Invalid authorization header format", nil)
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return rejectAuth(c, "Invalid or expired token", err)
		}

		userID, err := uuid.Parse(claims.UID)
		if err != nil {
			return rejectAuth(c, "Invalid or expired token", err)
		}

		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// UserIDFromContext returns the authenticated user id set by AuthMiddleware
func UserIDFromContext(c *fiber.Ctx) (uuid.UUID, bool) {
	userID, ok := c.Locals(userIDLocal).(uuid.UUID)
	return userID, ok
}

func rejectAuth(c *fiber.Ctx, message string, cause error) error {
	shared.NewServiceError(
		shared.ErrorCategoryAuthentication,
		shared.CodeInvalidToken,
		message,
		authServiceName,
		c.Path(),
		false,
		cause,
	).LogError()

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": message})
}
