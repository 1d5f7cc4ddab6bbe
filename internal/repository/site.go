package repository

import (
	"context"

	"chif/internal/models"
	"chif/internal/observability"

	"gorm.io/gorm"
)

// SiteRepository defines persistence operations for tenant sites.
type SiteRepository interface {
	List(ctx context.Context) ([]models.Site, error)
	GetByKey(ctx context.Context, key string) (*models.Site, error)
	Create(ctx context.Context, site *models.Site) error
}

type siteRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewSiteRepository returns a new SiteRepository implementation.
func NewSiteRepository(db *gorm.DB) SiteRepository {
	return &siteRepository{db: db, logger: observability.NewRepoLogger("sites")}
}

// List returns every site, active or not, by priority then id.
func (r *siteRepository) List(ctx context.Context) ([]models.Site, error) {
	defer observability.TrackQuery("list", "sites")()
	var sites []models.Site
	if err := r.db.WithContext(ctx).Order("priority ASC").Order("id ASC").Find(&sites).Error; err != nil {
		return nil, translateError(err, "Site", nil)
	}
	return sites, nil
}

func (r *siteRepository) GetByKey(ctx context.Context, key string) (*models.Site, error) {
	var site models.Site
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&site).Error; err != nil {
		return nil, translateError(err, "Site", key)
	}
	return &site, nil
}

func (r *siteRepository) Create(ctx context.Context, site *models.Site) error {
	if err := r.db.WithContext(ctx).Create(site).Error; err != nil {
		return translateError(err, "Site", site.Key)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"site_id": site.ID, "key": site.Key})
	return nil
}
