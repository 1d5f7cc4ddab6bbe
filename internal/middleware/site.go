package middleware

import (
	"path"
	"strings"

	"chif/internal/access"
	"chif/internal/models"
	"chif/internal/observability"
	"chif/internal/tenant"

	"github.com/gofiber/fiber/v2"
)

const siteLocalsKey = "site"

// Response headers carrying the resolved tenant to page renderers.
const (
	HeaderSiteName           = "x-site-name"
	HeaderSiteTitleHeader    = "x-site-title-header"
	HeaderSiteTitleSubHeader = "x-site-title-subheader"
	HeaderSiteDescription    = "x-site-description"
	HeaderSiteLogo           = "x-site-logo"
)

var staticExtensions = map[string]bool{
	".css": true, ".js": true, ".map": true, ".png": true, ".jpg": true,
	".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".txt": true,
}

// SiteResolver maps a host header to a tenant config.
type SiteResolver interface {
	Resolve(host string) tenant.Config
}

// ResolveSite attaches the tenant for the request's host to the request
// context and locals. Page routes also receive the x-site-* response headers;
// API routes and static assets do not.
func ResolveSite(reg SiteResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := c.Path()
		if IsStaticPath(p) {
			return c.Next()
		}

		site := reg.Resolve(c.Get(fiber.HeaderHost))
		c.Locals(siteLocalsKey, site)
		c.SetUserContext(tenant.WithSite(c.UserContext(), site))

		isDefault := "false"
		if site.IsDefault {
			isDefault = "true"
		}
		observability.TenantResolutions.WithLabelValues(site.Key, isDefault).Inc()

		if !isAPIPath(p) {
			c.Set(HeaderSiteName, site.Name)
			c.Set(HeaderSiteTitleHeader, site.TitleHeader)
			c.Set(HeaderSiteTitleSubHeader, site.TitleSubHeader)
			c.Set(HeaderSiteDescription, site.Description)
			c.Set(HeaderSiteLogo, site.LogoPath)
		}
		return c.Next()
	}
}

// SiteFrom returns the tenant resolved for this request. Requests that skipped
// resolution get the zero Config and false.
func SiteFrom(c *fiber.Ctx) (tenant.Config, bool) {
	site, ok := c.Locals(siteLocalsKey).(tenant.Config)
	return site, ok
}

// AccessGate enforces the admin-area and content-mutation policies. Redirects
// use 302; forbidden requests get a 403 JSON body.
func AccessGate(policy access.Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := policy.Authorize(access.Request{
			Method: c.Method(),
			Path:   c.Path(),
			URL:    c.OriginalURL(),
		}, SessionFrom(c))

		observability.AccessDecisions.WithLabelValues(decision.Outcome.String()).Inc()

		switch decision.Outcome {
		case access.Redirect:
			return c.Redirect(decision.Location, fiber.StatusFound)
		case access.Forbid:
			Logger.InfoContext(c.UserContext(), "access forbidden",
				"path", c.Path(), "method", c.Method(), "reason", decision.Reason)
			return models.RespondWithError(c, fiber.StatusForbidden, models.NewForbiddenError(decision.Reason))
		default:
			return c.Next()
		}
	}
}

// IsStaticPath reports whether p is a static asset that skips tenant work.
func IsStaticPath(p string) bool {
	if strings.HasPrefix(p, "/static/") || strings.HasPrefix(p, "/_next/") {
		return true
	}
	if strings.Contains(p, "favicon") {
		return true
	}
	return staticExtensions[strings.ToLower(path.Ext(p))]
}

func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}
