package seed

import (
	"context"
	"fmt"
	"log"

	"chif/internal/models"
	"chif/internal/tenant"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options configures a seeding run.
type Options struct {
	BranchesPerSite int
	EventsPerSite   int
	SermonsPerSite  int
	// Seed makes the generated data reproducible when non-zero.
	Seed        int64
	ShouldClean bool
}

// DefaultOptions is a small but realistic data set.
var DefaultOptions = Options{BranchesPerSite: 6, EventsPerSite: 8, SermonsPerSite: 12}

// Seeder fills the database with demo data.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a new Seeder.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, seed)}
}

// ClearAll removes seeded content. Sites are kept; they are upserted by key.
func (s *Seeder) ClearAll() error {
	log.Println("🧹 Cleaning branch and content tables...")
	for _, table := range []string{"services", "branch_sites", "branches", "events", "sermons"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clean %s: %w", table, err)
		}
	}
	return nil
}

// Sites upserts one sites row per registry entry, keyed by site key, and
// returns the stored rows in registry order. Entries with an explicit id keep it.
func (s *Seeder) Sites(ctx context.Context, reg *tenant.Registry) ([]models.Site, error) {
	entries := reg.Sites()
	out := make([]models.Site, 0, len(entries))
	for i, e := range entries {
		site := models.Site{
			ID:             e.SiteID,
			Key:            e.Key,
			HostPattern:    e.HostPattern,
			Name:           e.Name,
			TitleHeader:    e.TitleHeader,
			TitleSubHeader: e.TitleSubHeader,
			Description:    e.Description,
			LogoPath:       e.LogoPath,
			IsDefault:      e.IsDefault,
			IsActive:       true,
			Priority:       (i + 1) * 10,
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"host_pattern", "name", "title_header", "title_subheader",
				"description", "logo_path", "is_default", "is_active", "priority",
			}),
		}).Create(&site).Error
		if err != nil {
			return nil, fmt.Errorf("upsert site %q: %w", e.Key, err)
		}
		var stored models.Site
		if err := s.db.WithContext(ctx).Where("key = ?", e.Key).First(&stored).Error; err != nil {
			return nil, fmt.Errorf("reload site %q: %w", e.Key, err)
		}
		out = append(out, stored)
	}
	return out, nil
}

// Summary counts what a run created.
type Summary struct {
	Sites    int
	Branches int
	Events   int
	Sermons  int
}

// Run seeds sites from reg and then branches and content for every site. One
// branch in each site is also linked to the default site so shared branches
// appear in the data.
func (s *Seeder) Run(ctx context.Context, reg *tenant.Registry, opts Options) (Summary, error) {
	var sum Summary
	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return sum, err
		}
	}

	sites, err := s.Sites(ctx, reg)
	if err != nil {
		return sum, err
	}
	sum.Sites = len(sites)

	var defaultID uint
	for _, site := range sites {
		if site.IsDefault {
			defaultID = site.ID
		}
	}

	for _, site := range sites {
		log.Printf("🌱 Seeding %s (%s)", site.Name, site.Key)
		for i := 0; i < opts.BranchesPerSite; i++ {
			siteIDs := []uint{site.ID}
			if i == 0 && defaultID != 0 && defaultID != site.ID {
				siteIDs = append(siteIDs, defaultID)
			}
			if _, err := s.factory.CreateBranch(ctx, siteIDs); err != nil {
				return sum, fmt.Errorf("branch for %s: %w", site.Key, err)
			}
			sum.Branches++
		}
		for i := 0; i < opts.EventsPerSite; i++ {
			if _, err := s.factory.CreateEvent(ctx, site.ID); err != nil {
				return sum, fmt.Errorf("event for %s: %w", site.Key, err)
			}
			sum.Events++
		}
		for i := 0; i < opts.SermonsPerSite; i++ {
			if _, err := s.factory.CreateSermon(ctx, site.ID); err != nil {
				return sum, fmt.Errorf("sermon for %s: %w", site.Key, err)
			}
			sum.Sermons++
		}
	}
	return sum, nil
}
