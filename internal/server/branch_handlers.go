package server

import (
	"chif/internal/middleware"
	"chif/internal/models"
	"chif/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetBranches handles GET /api/branches
func (s *Server) GetBranches(c *fiber.Ctx) error {
	site := s.currentSite(c)
	branches, err := s.branchService.ListPublic(c.UserContext(), site.SiteID)
	if err != nil {
		return respondAppError(c, err)
	}
	s.setPublicCacheHeaders(c)
	return c.JSON(branches)
}

// GetBranch handles GET /api/branches/:id
func (s *Server) GetBranch(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	branch, err := s.branchService.GetPublic(c.UserContext(), s.currentSite(c).SiteID, id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(branch)
}

// CreateBranch handles POST /api/branches/create
func (s *Server) CreateBranch(c *fiber.Ctx) error {
	var in service.CreateBranchInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	branch, err := s.branchService.Create(c.UserContext(), middleware.SessionFrom(c), s.currentSite(c).SiteID, in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(branch)
}

// UpdateBranch handles PUT /api/branches/update/:id
func (s *Server) UpdateBranch(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.UpdateBranchInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	branch, err := s.branchService.Update(c.UserContext(), middleware.SessionFrom(c), id, in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(branch)
}

// DeleteBranch handles DELETE /api/branches/delete/:id
func (s *Server) DeleteBranch(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.branchService.Delete(c.UserContext(), middleware.SessionFrom(c), id); err != nil {
		return respondAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AdminListBranches handles GET /admin/branches?include_inactive=&site_id=
func (s *Server) AdminListBranches(c *fiber.Ctx) error {
	in := service.AdminListInput{
		IncludeInactive: c.QueryBool("include_inactive", false),
	}
	if raw := c.Query("site_id"); raw != "" {
		siteID := c.QueryInt("site_id", 0)
		if siteID <= 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid site_id"))
		}
		id := uint(siteID)
		in.SiteID = &id
	}

	branches, err := s.branchService.ListAdmin(c.UserContext(), middleware.SessionFrom(c), in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(branches)
}

// AdminGetBranch handles GET /admin/branches/:id
func (s *Server) AdminGetBranch(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	branch, err := s.branchService.GetAdmin(c.UserContext(), middleware.SessionFrom(c), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(branch)
}
