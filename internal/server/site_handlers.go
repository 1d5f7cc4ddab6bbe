package server

import (
	"chif/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetSite handles GET /api/site
func (s *Server) GetSite(c *fiber.Ctx) error {
	return c.JSON(s.currentSite(c))
}

// AdminListSites handles GET /admin/sites. It lists stored sites, including
// inactive ones, next to the registry the server is running with.
func (s *Server) AdminListSites(c *fiber.Ctx) error {
	sites, err := s.siteRepo.List(c.UserContext())
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"stored":   sites,
		"registry": s.registry.Sites(),
	})
}

// GetFeatureFlags returns configured feature flags and their state for the
// current session user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	subject := ""
	if sess := middleware.SessionFrom(c); sess != nil {
		subject = sess.UserID
	}
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(subject),
	})
}

// GetUpcomingEvents handles GET /api/events
func (s *Server) GetUpcomingEvents(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	events, err := s.contentService.UpcomingEvents(c.UserContext(), s.currentSite(c).SiteID, s.viewerTimezone(c), page.Limit)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(events)
}

// GetSermons handles GET /api/sermons
func (s *Server) GetSermons(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	sermons, err := s.contentService.Sermons(c.UserContext(), s.currentSite(c).SiteID, s.viewerTimezone(c), page.Limit, page.Offset)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(sermons)
}
