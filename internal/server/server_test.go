package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"chif/internal/config"
	"chif/internal/models"
	"chif/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	app    *fiber.App
	server *Server
	db     *gorm.DB
	redis  *miniredis.Miniredis
	main   models.Site
	school models.Site
	youth  models.Site
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:             testutil.JWTSecret,
		Port:                  "0",
		Env:                   "test",
		SiteRegistrySource:    "database",
		SignInPath:            "/auth/signin",
		AdminPrefix:           "/admin",
		MutationDetection:     "path",
		SessionCookie:         "session",
		BranchCacheTTLSeconds: 300,
		DBQueryTimeoutSeconds: 5,
		FeatureFlags:          "branch_cache=on",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	main, school, youth := testutil.SeedSites(t, db)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)

	return &testEnv{app: s.NewApp(), server: s, db: db, redis: mr, main: main, school: school, youth: youth}
}

type reqOpt func(*http.Request)

func withHost(host string) reqOpt {
	return func(r *http.Request) { r.Host = host }
}

func withToken(token string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func asRole(t *testing.T, role string) reqOpt {
	return withToken(testutil.SignToken(t, "user-"+role, role))
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}, opts ...reqOpt) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestNewServerWithDeps_RegistryFromDatabase(t *testing.T) {
	env := newTestEnv(t)

	sites := env.server.Registry().Sites()
	require.Len(t, sites, 3)
	assert.Equal(t, "school", sites[0].Key)
	assert.Equal(t, "main", env.server.Registry().Default().Key)
	assert.Equal(t, env.school.ID, env.server.Registry().Resolve("school.chif.life").SiteID)
}

func TestNewServerWithDeps_RegistryFromFile(t *testing.T) {
	db := testutil.NewDB(t)
	path := filepath.Join(t.TempDir(), "sites.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
sites:
  - id: 7
    key: only
    host_pattern: only.example
    name: Only
    default: true
`), 0o600))

	cfg := testConfig()
	cfg.SiteRegistrySource = "file"
	cfg.SitesFile = path
	s, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(7), s.Registry().Default().SiteID)

	cfg.FeatureFlags = "db_site_registry=on"
	_, err = NewServerWithDeps(cfg, db, nil)
	assert.Error(t, err, "flag switches to the sites table, which is empty")
}

func TestGetSite_ResolvesByHost(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		host string
		key  string
	}{
		{"school.chif.life", "school"},
		{"youth.chif.life:443", "youth"},
		{"www.chif.life", "main"},
		{"unknown.example", "main"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, "/api/site", nil, withHost(tt.host))
			require.Equal(t, http.StatusOK, resp.StatusCode)
			site := decode[map[string]interface{}](t, resp)
			assert.Equal(t, tt.key, site["key"])
			assert.Empty(t, resp.Header.Get("x-site-name"), "api routes carry no tenant headers")
		})
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]interface{}](t, resp)
	assert.Equal(t, "healthy", body["status"])

	env.redis.Close()
	resp = env.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[map[string]interface{}](t, resp)
	assert.Equal(t, "degraded", body["status"])
}

func TestFeatureFlagsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/feature-flags", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}](t, resp)
	assert.Equal(t, "on", body.Raw["branch_cache"])
	assert.True(t, body.Evaluated["branch_cache"])
}

func TestRespondAppError_HidesInternalCause(t *testing.T) {
	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return respondAppError(c, io.ErrUnexpectedEOF)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), "unexpected EOF")
	assert.Contains(t, string(raw), models.CodeInternal)
}
