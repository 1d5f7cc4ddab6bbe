// Package service holds the branch use-cases that sit between HTTP handlers
// and repositories: capability checks, input normalization, caching and
// query deadlines.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"chif/internal/access"
	"chif/internal/cache"
	"chif/internal/featureflags"
	"chif/internal/models"
	"chif/internal/repository"
	"chif/internal/validation"

	"github.com/redis/go-redis/v9"
)

const defaultQueryTimeout = 5 * time.Second

// ServiceInput is one weekly service slot as submitted by an editor.
type ServiceInput struct {
	Day         string  `json:"day"`
	Type        string  `json:"type"`
	ServiceType *string `json:"service_type"`
	Time        string  `json:"time"`
	Location    string  `json:"location"`
	Link        *string `json:"link"`
}

type CreateBranchInput struct {
	Name     string         `json:"name"`
	Country  *string        `json:"country"`
	Address  string         `json:"address"`
	Phone    string         `json:"phone"`
	IsActive *bool          `json:"is_active"`
	Order    *int           `json:"order"`
	Services []ServiceInput `json:"services"`
	SiteIDs  []uint         `json:"site_ids"`
}

// UpdateBranchInput changes only the fields that are set. Services and
// SiteIDs, when present, replace the stored collections entirely.
type UpdateBranchInput struct {
	Name     *string         `json:"name"`
	Country  *string         `json:"country"`
	Address  *string         `json:"address"`
	Phone    *string         `json:"phone"`
	IsActive *bool           `json:"is_active"`
	Order    *int            `json:"order"`
	Services *[]ServiceInput `json:"services"`
	SiteIDs  *[]uint         `json:"site_ids"`
}

// AdminListInput filters the admin listing. A nil SiteID spans every tenant.
type AdminListInput struct {
	SiteID          *uint
	IncludeInactive bool
}

type BranchServiceConfig struct {
	CacheTTL     time.Duration
	QueryTimeout time.Duration
}

type BranchService struct {
	repo         repository.BranchRepository
	rdb          *redis.Client
	flags        *featureflags.Manager
	cacheTTL     time.Duration
	queryTimeout time.Duration
}

func NewBranchService(repo repository.BranchRepository, rdb *redis.Client, flags *featureflags.Manager, cfg BranchServiceConfig) *BranchService {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	if cfg.CacheTTL < 0 {
		cfg.CacheTTL = 0
	}
	return &BranchService{
		repo:         repo,
		rdb:          rdb,
		flags:        flags,
		cacheTTL:     cfg.CacheTTL,
		queryTimeout: cfg.QueryTimeout,
	}
}

// CacheTTL is the freshness window public readers may rely on.
func (s *BranchService) CacheTTL() time.Duration {
	return s.cacheTTL
}

func (s *BranchService) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *BranchService) cacheEnabled() bool {
	return s.rdb != nil && s.cacheTTL > 0 && s.flags.On(featureflags.BranchCache)
}

// ListPublic returns the active branches of one tenant, served from Redis
// when the branch cache is enabled.
func (s *BranchService) ListPublic(ctx context.Context, siteID uint) ([]models.Branch, error) {
	load := func(ctx context.Context) ([]models.Branch, error) {
		ctx, cancel := s.withDeadline(ctx)
		defer cancel()
		branches, err := s.repo.List(ctx, repository.BranchFilter{SiteID: &siteID})
		if err != nil {
			return nil, err
		}
		if branches == nil {
			branches = []models.Branch{}
		}
		return branches, nil
	}

	return cachedRead(ctx, s, "branches", func(gen int64) string {
		return cache.BranchListKey(gen, siteID)
	}, load)
}

// cachedRead serves load through the generation-keyed cache when caching is
// on. Errors are never cached.
func cachedRead[T any](ctx context.Context, s *BranchService, name string, key func(gen int64) string, load func(context.Context) (T, error)) (T, error) {
	if !s.cacheEnabled() {
		return load(ctx)
	}
	gen, err := cache.Generation(ctx, s.rdb, cache.BranchGenerationKey)
	if err != nil {
		slog.WarnContext(ctx, "branch cache generation unavailable", "err", err)
		return load(ctx)
	}
	return cache.Aside(ctx, s.rdb, name, key(gen), s.cacheTTL, load)
}

// GetPublic returns one branch if it is active and linked to the tenant.
// Anything else is reported as not found so inactive branches stay hidden.
func (s *BranchService) GetPublic(ctx context.Context, siteID, id uint) (*models.Branch, error) {
	load := func(ctx context.Context) (*models.Branch, error) {
		ctx, cancel := s.withDeadline(ctx)
		defer cancel()

		branch, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !branch.IsActive || !linkedTo(branch, siteID) {
			return nil, models.NewNotFoundError("Branch", id)
		}
		return branch, nil
	}
	return cachedRead(ctx, s, "branch", func(gen int64) string {
		return cache.BranchDetailKey(gen, siteID, id)
	}, load)
}

func linkedTo(b *models.Branch, siteID uint) bool {
	for _, id := range b.SiteIDs() {
		if id == siteID {
			return true
		}
	}
	return false
}

// ListAdmin lists branches for editors. Inactive rows need CapViewInactive.
func (s *BranchService) ListAdmin(ctx context.Context, sess *access.Session, in AdminListInput) ([]models.Branch, error) {
	if in.IncludeInactive && !sess.Can(access.CapViewInactive) {
		return nil, models.NewForbiddenError("Not allowed to view inactive branches")
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	branches, err := s.repo.List(ctx, repository.BranchFilter{SiteID: in.SiteID, IncludeInactive: in.IncludeInactive})
	if err != nil {
		return nil, err
	}
	if branches == nil {
		branches = []models.Branch{}
	}
	return branches, nil
}

// GetAdmin returns any branch, active or not.
func (s *BranchService) GetAdmin(ctx context.Context, sess *access.Session, id uint) (*models.Branch, error) {
	if !sess.Can(access.CapViewInactive) {
		return nil, models.NewForbiddenError("Not allowed to view branch details")
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	return s.repo.GetByID(ctx, id)
}

// Create stores a new branch. Without explicit site ids the branch is linked
// to the tenant that served the request.
func (s *BranchService) Create(ctx context.Context, sess *access.Session, currentSiteID uint, in CreateBranchInput) (*models.Branch, error) {
	if !sess.Can(access.CapManageContent) {
		return nil, models.NewForbiddenError("Not allowed to manage branches")
	}

	branch := &models.Branch{
		Name:     strings.TrimSpace(in.Name),
		Country:  trimOptional(in.Country),
		Address:  strings.TrimSpace(in.Address),
		Phone:    strings.TrimSpace(in.Phone),
		IsActive: true,
		Services: toServices(in.Services),
	}
	if in.IsActive != nil {
		branch.IsActive = *in.IsActive
	}
	if in.Order != nil {
		branch.Order = *in.Order
	}

	errs := validation.Branch(branch)
	if in.Order != nil && *in.Order < 0 {
		errs.Add("order", "must not be negative")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	siteIDs := in.SiteIDs
	if len(siteIDs) == 0 && currentSiteID != 0 {
		siteIDs = []uint{currentSiteID}
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	created, err := s.repo.Create(ctx, branch, siteIDs)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return created, nil
}

// Update applies a partial change to a branch.
func (s *BranchService) Update(ctx context.Context, sess *access.Session, id uint, in UpdateBranchInput) (*models.Branch, error) {
	if !sess.Can(access.CapManageContent) {
		return nil, models.NewForbiddenError("Not allowed to manage branches")
	}

	var errs validation.Errors
	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		validation.BranchName(&errs, name)
		fields["name"] = name
	}
	if in.Country != nil {
		fields["country"] = trimOptional(in.Country)
	}
	if in.Address != nil {
		address := strings.TrimSpace(*in.Address)
		validation.BranchAddress(&errs, address)
		fields["address"] = address
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		validation.BranchPhone(&errs, phone)
		fields["phone"] = phone
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	if in.Order != nil {
		if *in.Order < 0 {
			errs.Add("order", "must not be negative")
		}
		fields["sort_order"] = *in.Order
	}

	changes := repository.BranchChanges{Fields: fields}
	if in.Services != nil {
		services := toServices(*in.Services)
		errs = append(errs, validation.Services(services)...)
		changes.Services = &services
	}
	if in.SiteIDs != nil {
		ids := append([]uint(nil), (*in.SiteIDs)...)
		changes.SiteIDs = &ids
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *BranchService) Delete(ctx context.Context, sess *access.Session, id uint) error {
	if !sess.Can(access.CapManageContent) {
		return models.NewForbiddenError("Not allowed to manage branches")
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// invalidate orphans every cached branch list. Failure only delays
// freshness until the TTL expires, so it is logged and not returned.
func (s *BranchService) invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := cache.Bump(ctx, s.rdb, cache.BranchGenerationKey); err != nil {
		slog.WarnContext(ctx, "failed to bump branch cache generation", "err", err)
	}
}

func toServices(in []ServiceInput) []models.Service {
	out := make([]models.Service, 0, len(in))
	for _, si := range in {
		svc := models.Service{
			Day:         validation.NormalizeWeekday(si.Day),
			Type:        models.ServiceMode(strings.TrimSpace(si.Type)),
			ServiceType: trimOptional(si.ServiceType),
			Time:        strings.TrimSpace(si.Time),
			Location:    strings.TrimSpace(si.Location),
		}
		if svc.Type == models.ServiceModeOnline {
			svc.Link = trimOptional(si.Link)
		}
		out = append(out, svc)
	}
	return out
}

// trimOptional trims a nullable string, mapping blank to nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
