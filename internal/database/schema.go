package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chif/internal/config"
	"chif/internal/middleware"
	"chif/internal/models"

	"gorm.io/gorm"
)

// Schema modes accepted by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// legacySiteColumn is the single-tenant link migration 000002 folds into
// branch_sites. AutoMigrate never drops it.
const legacySiteColumn = "site_id"

// schemaPlan is what ApplySchema does for one configuration.
type schemaPlan struct {
	Mode    string
	RunSQL  bool
	RunAuto bool
}

// planSchema applies SQL migrations everywhere in hybrid mode and AutoMigrate
// only outside production-like environments. Auto mode in production needs
// DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	env := strings.ToLower(strings.TrimSpace(cfg.Env))
	prodLike := env == "production" || env == "prod" || env == "staging" || env == "stage"

	plan := schemaPlan{Mode: mode}
	switch mode {
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.RunAuto = true
	case SchemaModeHybrid:
		plan.RunSQL = true
		plan.RunAuto = !prodLike
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
	return plan, nil
}

// AutoMigrate creates or updates every persistent model's table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the database up to date according to DB_SCHEMA_MODE and
// warns when branches still carry the legacy single-tenant column.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.RunSQL {
		pending, err := pendingMigrations(ctx, db)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			middleware.Logger.Info("Applying SQL migrations", slog.Any("pending", migrationNames(pending)))
		}
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if plan.RunAuto {
		if plan.Mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.Warn("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true set for DB_SCHEMA_MODE=auto; review schema diffs before production deployment")
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", plan.Mode), slog.String("env", cfg.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	if hasLegacySiteColumn(db.WithContext(ctx)) {
		middleware.Logger.Warn("branches.site_id is still present; tenant links are only read from branch_sites, run migration 000002 to move them")
	}
	return nil
}

// SchemaStatus is what `migrate status` prints.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	// LegacySiteColumn is set while branches still has the single-tenant
	// site_id column.
	LegacySiteColumn bool
}

// PendingNames returns the pending migrations as 000002_name strings.
func (s *SchemaStatus) PendingNames() []string {
	return migrationNames(s.PendingMigrations)
}

func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.Mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.RunSQL,
		WillRunAutoMigrate: plan.RunAuto,
		LegacySiteColumn:   hasLegacySiteColumn(db.WithContext(ctx)),
	}
	if !plan.RunSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	status.PendingMigrations = unapplied(applied, GetMigrations())
	return status, nil
}

func pendingMigrations(ctx context.Context, db *gorm.DB) ([]Migration, error) {
	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	return unapplied(applied, GetMigrations()), nil
}

func unapplied(applied []int, registered []Migration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	var out []Migration
	for _, m := range registered {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

func migrationNames(ms []Migration) []string {
	names := make([]string, len(ms))
	for i := range ms {
		names[i] = ms[i].String()
	}
	return names
}

func hasLegacySiteColumn(db *gorm.DB) bool {
	m := db.Migrator()
	return m.HasTable(&models.Branch{}) && m.HasColumn(&models.Branch{}, legacySiteColumn)
}
