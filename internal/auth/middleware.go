package auth

import (
	"strings"

	"backend-barrierfree/internal/db"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	localUserID  = "user_id"
	localIsAdmin = "is_admin"
)

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

// JWTMiddleware validates bearer tokens and stores user_id in locals.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		userID, err := userFromToken(token, secretBytes)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

// OptionalJWTMiddleware sets user_id when a valid bearer token is present and
// lets anonymous requests through untouched.
func OptionalJWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		if token := bearerFromHeader(c.Get("Authorization")); token != "" {
			if userID, err := userFromToken(token, secretBytes); err == nil {
				c.Locals(localUserID, userID)
			}
		}
		return c.Next()
	}
}

// AdminMiddleware must run after JWTMiddleware.
func AdminMiddleware(q db.Querier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "login required")
		}
		ok, err := HasRole(c.Context(), q, userID, RoleAdmin)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "admin role required")
		}
		c.Locals(localIsAdmin, true)
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

func userFromToken(token string, secret []byte) (string, error) {
	parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" || claims.Type != tokenAccess {
		return "", ErrTokenInvalid
	}
	return claims.UserID, nil
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
