// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"time"

	"chif/internal/models"
	"chif/internal/observability"
	"chif/internal/validation"

	"gorm.io/gorm"
)

const branchResource = "Branch"

// BranchFilter narrows List. A nil SiteID lists branches of every tenant.
type BranchFilter struct {
	SiteID          *uint
	IncludeInactive bool
}

// BranchChanges describes an update. Fields holds column updates; nil
// collections are left untouched and non-nil ones replace the stored rows.
type BranchChanges struct {
	Fields   map[string]interface{}
	Services *[]models.Service
	SiteIDs  *[]uint
}

// BranchRepository defines persistence operations for branches, their
// service slots and their tenant links.
type BranchRepository interface {
	List(ctx context.Context, filter BranchFilter) ([]models.Branch, error)
	GetByID(ctx context.Context, id uint) (*models.Branch, error)
	Create(ctx context.Context, branch *models.Branch, siteIDs []uint) (*models.Branch, error)
	Update(ctx context.Context, id uint, changes BranchChanges) (*models.Branch, error)
	Delete(ctx context.Context, id uint) error
}

type branchRepository struct {
	db     *gorm.DB
	locks  *keyedMutex
	logger *observability.RepoLogger
}

// NewBranchRepository returns a new BranchRepository implementation.
func NewBranchRepository(db *gorm.DB) BranchRepository {
	return &branchRepository{
		db:     db,
		locks:  newKeyedMutex(),
		logger: observability.NewRepoLogger("branches"),
	}
}

// withChildren preloads services (lexicographic by day, then insertion) and
// tenant links.
func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Services", func(db *gorm.DB) *gorm.DB {
			return db.Order("day ASC").Order("id ASC")
		}).
		Preload("Sites", func(db *gorm.DB) *gorm.DB {
			return db.Order("site_id ASC")
		})
}

func (r *branchRepository) List(ctx context.Context, filter BranchFilter) ([]models.Branch, error) {
	defer observability.TrackQuery("list", "branches")()
	ctx, span := observability.StartRepositorySpan(ctx, "List", "branches")

	q := withChildren(r.db.WithContext(ctx)).Model(&models.Branch{})
	if !filter.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if filter.SiteID != nil {
		q = q.Where("id IN (?)", r.db.Model(&models.BranchSite{}).Select("branch_id").Where("site_id = ?", *filter.SiteID))
	}

	var branches []models.Branch
	err := q.Order("sort_order ASC").Order("id ASC").Find(&branches).Error
	observability.EndSpan(span, err)
	if err != nil {
		return nil, translateError(err, branchResource, nil)
	}
	return branches, nil
}

func (r *branchRepository) GetByID(ctx context.Context, id uint) (*models.Branch, error) {
	defer observability.TrackQuery("get", "branches")()
	return r.get(r.db.WithContext(ctx), id)
}

func (r *branchRepository) get(db *gorm.DB, id uint) (*models.Branch, error) {
	var branch models.Branch
	if err := withChildren(db).First(&branch, id).Error; err != nil {
		return nil, translateError(err, branchResource, id)
	}
	return &branch, nil
}

// Create inserts the branch, its services and its tenant links in one
// transaction and returns the stored branch.
func (r *branchRepository) Create(ctx context.Context, branch *models.Branch, siteIDs []uint) (*models.Branch, error) {
	defer observability.TrackQuery("create", "branches")()
	ctx, span := observability.StartRepositorySpan(ctx, "Create", "branches")

	if err := validation.BranchScalars(branch).Err(); err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}

	services := branch.Services
	var created *models.Branch
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Services", "Sites").Create(branch).Error; err != nil {
			return err
		}
		if err := insertServices(tx, branch.ID, services); err != nil {
			return err
		}
		if err := insertSiteLinks(tx, branch.ID, siteIDs); err != nil {
			return err
		}
		var err error
		created, err = r.get(tx, branch.ID)
		return err
	})
	observability.EndSpan(span, err)
	if err != nil {
		r.logger.LogError(ctx, "create", err)
		return nil, translateError(err, branchResource, nil)
	}

	r.logger.LogCreate(ctx, map[string]interface{}{
		"branch_id": created.ID,
		"services":  len(created.Services),
		"sites":     created.SiteIDs(),
	})
	return created, nil
}

// Update applies changes under the branch's lock in one transaction. Service
// and site collections are replaced wholesale when provided.
func (r *branchRepository) Update(ctx context.Context, id uint, changes BranchChanges) (*models.Branch, error) {
	defer observability.TrackQuery("update", "branches")()
	ctx, span := observability.StartRepositorySpan(ctx, "Update", "branches")

	unlock := r.locks.Lock(id)
	defer unlock()

	var updated *models.Branch
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Branch
		if err := tx.Select("id").First(&existing, id).Error; err != nil {
			return err
		}

		fields := make(map[string]interface{}, len(changes.Fields)+1)
		for k, v := range changes.Fields {
			fields[k] = v
		}
		fields["updated_at"] = time.Now().Unix()
		if err := tx.Model(&models.Branch{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}

		if changes.Services != nil {
			if err := tx.Where("branch_id = ?", id).Delete(&models.Service{}).Error; err != nil {
				return err
			}
			if err := insertServices(tx, id, *changes.Services); err != nil {
				return err
			}
		}
		if changes.SiteIDs != nil {
			if err := tx.Where("branch_id = ?", id).Delete(&models.BranchSite{}).Error; err != nil {
				return err
			}
			if err := insertSiteLinks(tx, id, *changes.SiteIDs); err != nil {
				return err
			}
		}

		var err error
		updated, err = r.get(tx, id)
		return err
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, translateError(err, branchResource, id)
	}

	r.logger.LogUpdate(ctx, map[string]interface{}{
		"branch_id":         id,
		"replaced_services": changes.Services != nil,
		"replaced_sites":    changes.SiteIDs != nil,
	})
	return updated, nil
}

// Delete removes the branch with its services and tenant links.
func (r *branchRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "branches")()
	ctx, span := observability.StartRepositorySpan(ctx, "Delete", "branches")

	unlock := r.locks.Lock(id)
	defer unlock()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("branch_id = ?", id).Delete(&models.Service{}).Error; err != nil {
			return err
		}
		if err := tx.Where("branch_id = ?", id).Delete(&models.BranchSite{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Branch{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return translateError(err, branchResource, id)
	}

	r.logger.LogDelete(ctx, map[string]interface{}{"branch_id": id})
	return nil
}

func insertServices(tx *gorm.DB, branchID uint, services []models.Service) error {
	if len(services) == 0 {
		return nil
	}
	rows := make([]models.Service, len(services))
	for i, s := range services {
		s.ID = 0
		s.BranchID = branchID
		rows[i] = s
	}
	return tx.Create(&rows).Error
}

func insertSiteLinks(tx *gorm.DB, branchID uint, siteIDs []uint) error {
	seen := make(map[uint]bool, len(siteIDs))
	rows := make([]models.BranchSite, 0, len(siteIDs))
	for _, id := range siteIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, models.BranchSite{BranchID: branchID, SiteID: id})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}
