package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chif/internal/access"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signToken(t *testing.T, secret, sub, role string, exp time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(exp).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func sessionApp() *fiber.App {
	app := fiber.New()
	app.Use(Session(SessionConfig{Secret: testSecret, CookieName: "session"}))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		sess := SessionFrom(c)
		if sess == nil {
			return c.JSON(fiber.Map{"anonymous": true})
		}
		uid, _ := c.UserContext().Value(UserIDKey).(string)
		return c.JSON(fiber.Map{"user": sess.UserID, "role": sess.Role, "ctx_user": uid})
	})
	return app
}

func TestSession(t *testing.T) {
	app := sessionApp()

	tests := []struct {
		name      string
		header    string
		cookie    string
		anonymous bool
		user      string
		role      string
	}{
		{name: "bearer staff", header: "Bearer " + signToken(t, testSecret, "u-1", "STAFF", time.Hour), user: "u-1", role: "STAFF"},
		{name: "cookie admin", cookie: signToken(t, testSecret, "u-2", "admin", time.Hour), user: "u-2", role: "ADMIN"},
		{name: "unknown role keeps session", header: "Bearer " + signToken(t, testSecret, "u-3", "DEACON", time.Hour), user: "u-3", role: ""},
		{name: "no token", anonymous: true},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", anonymous: true},
		{name: "malformed", header: "Bearer malformed.token.here", anonymous: true},
		{name: "expired", header: "Bearer " + signToken(t, testSecret, "u-1", "ADMIN", -time.Hour), anonymous: true},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other-secret-other-secret-other-secret", "u-1", "ADMIN", time.Hour), anonymous: true},
		{name: "missing subject", header: "Bearer " + signToken(t, testSecret, "", "ADMIN", time.Hour), anonymous: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: tt.cookie})
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.anonymous {
				assert.Equal(t, true, body["anonymous"])
				return
			}
			assert.Equal(t, tt.user, body["user"])
			assert.Equal(t, tt.user, body["ctx_user"])
			assert.Equal(t, tt.role, body["role"])
		})
	}
}

func TestParseSessionToken_RejectsNonHMAC(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1", "role": "ADMIN"})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseSessionToken(raw, testSecret)
	assert.Error(t, err)
}

func TestParseSessionToken_Role(t *testing.T) {
	sess, err := ParseSessionToken(signToken(t, testSecret, "42", " pastor ", time.Hour), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "42", sess.UserID)
	assert.Equal(t, access.RolePastor, sess.Role)
}
