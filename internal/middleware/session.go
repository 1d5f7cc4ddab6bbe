package middleware

import (
	"context"
	"errors"
	"strings"

	"chif/internal/access"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const sessionLocalsKey = "session"

var errMissingSubject = errors.New("token has no subject")

// SessionConfig configures how the session token is located and verified.
type SessionConfig struct {
	Secret string
	// CookieName is checked when no Authorization header is sent.
	CookieName string
}

// Session attaches the caller's session to the request when a valid token is
// presented. It never rejects: an absent or invalid token simply leaves the
// request anonymous and the access gate decides.
func Session(cfg SessionConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c.Get(fiber.HeaderAuthorization))
		if raw == "" && cfg.CookieName != "" {
			raw = c.Cookies(cfg.CookieName)
		}
		if raw == "" {
			return c.Next()
		}

		sess, err := ParseSessionToken(raw, cfg.Secret)
		if err != nil {
			Logger.DebugContext(c.UserContext(), "ignoring invalid session token", "error", err.Error())
			return c.Next()
		}

		c.Locals(sessionLocalsKey, sess)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, sess.UserID))
		return c.Next()
	}
}

// SessionFrom returns the request's session, or nil for anonymous requests.
func SessionFrom(c *fiber.Ctx) *access.Session {
	if sess, ok := c.Locals(sessionLocalsKey).(*access.Session); ok {
		return sess
	}
	return nil
}

// ParseSessionToken verifies an HS256 token and maps its "sub" and "role"
// claims to a session. Unknown roles yield a session with an empty role.
func ParseSessionToken(raw, secret string) (*access.Session, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	if sub == "" {
		return nil, errMissingSubject
	}

	role, _ := claims["role"].(string)
	return &access.Session{UserID: sub, Role: access.ParseRole(role)}, nil
}

func bearerToken(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
