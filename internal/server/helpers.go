package server

import (
	"errors"
	"fmt"
	"strings"

	"chif/internal/middleware"
	"chif/internal/models"
	"chif/internal/tenant"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers return nil when they see it.
var errResponseWritten = errors.New("response already written")

// HeaderViewerTimezone lets clients report their IANA zone on API calls.
const HeaderViewerTimezone = "X-Viewer-Timezone"

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter as a positive uint. On failure it writes
// a 400 response and returns errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+strings.ToUpper(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// respondAppError writes err with the status its code maps to. Internal
// causes are logged here and never sent to the client.
func respondAppError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError(err)
	}
	if appErr.Code == models.CodeInternal {
		cause := "unknown"
		if appErr.Err != nil {
			cause = appErr.Err.Error()
		}
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"path", c.Path(), "method", c.Method(), "error", cause)
	}
	return models.RespondWithError(c, appErr.Status(), appErr)
}

// currentSite returns the tenant resolved for the request, falling back to the
// registry default for routes the resolver skipped.
func (s *Server) currentSite(c *fiber.Ctx) tenant.Config {
	if site, ok := middleware.SiteFrom(c); ok {
		return site
	}
	return s.registry.Default()
}

// viewerTimezone picks the zone to render times in: ?tz=, then the
// X-Viewer-Timezone header, then DEFAULT_TIMEZONE. Empty means the
// placeholder pass.
func (s *Server) viewerTimezone(c *fiber.Ctx) string {
	if tz := strings.TrimSpace(c.Query("tz")); tz != "" {
		return tz
	}
	if tz := strings.TrimSpace(c.Get(HeaderViewerTimezone)); tz != "" {
		return tz
	}
	return s.config.DefaultTimezone
}

func (s *Server) setPublicCacheHeaders(c *fiber.Ctx) {
	if ttl := s.branchService.CacheTTL(); ttl > 0 {
		c.Set(fiber.HeaderCacheControl, fmt.Sprintf("public, max-age=%d", int(ttl.Seconds())))
		c.Vary(fiber.HeaderHost)
	}
}
