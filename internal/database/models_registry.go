package database

import "chif/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters for AutoMigrate: referenced tables first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Site{},
		&models.Branch{},
		&models.Service{},
		&models.BranchSite{},
		&models.Event{},
		&models.Sermon{},
	}
}
