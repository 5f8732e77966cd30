package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/anjiri1684/course_certificates/models"
	"github.com/anjiri1684/course_certificates/utils"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const tokenTTL = 72 * time.Hour

var errNoIdentity = errors.New("missing identity claims")

func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.EqualFold(err.Error(), "Missing or malformed JWT") {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

// IssueToken signs the claims Protected expects.
func IssueToken(secret string, userID uuid.UUID, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a raw token outside of the HTTP middleware chain,
// e.g. for the websocket handshake.
func ParseToken(secret, raw string) (uuid.UUID, string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", errNoIdentity
	}
	return identityFromClaims(claims)
}

func identityFromClaims(claims jwt.MapClaims) (uuid.UUID, string, error) {
	rawID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	id, err := utils.ParseID(rawID)
	if err != nil || role == "" {
		return uuid.Nil, "", errNoIdentity
	}
	return id, role, nil
}

// CurrentUser returns the caller resolved by Protected.
func CurrentUser(c *fiber.Ctx) (uuid.UUID, string, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, "", errNoIdentity
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", errNoIdentity
	}
	return identityFromClaims(claims)
}

func requireRole(role, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, current, err := CurrentUser(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token claims",
			})
		}
		if current != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": message,
			})
		}
		return c.Next()
	}
}

func AdminRequired() fiber.Handler {
	return requireRole(models.RoleAdmin, "Forbidden: Admin access required")
}

func TeacherRequired() fiber.Handler {
	return requireRole(models.RoleTeacher, "Forbidden: Teacher access required")
}

func StudentRequired() fiber.Handler {
	return requireRole(models.RoleStudent, "Forbidden: Student access required")
}
