package repository

import (
	"context"

	"chif/internal/models"
	"chif/internal/observability"

	"gorm.io/gorm"
)

const maxContentPage = 100

// ContentRepository reads tenant-scoped events and sermons.
type ContentRepository interface {
	ListUpcomingEvents(ctx context.Context, siteID uint, from int64, limit int) ([]models.Event, error)
	ListSermons(ctx context.Context, siteID uint, limit, offset int) ([]models.Sermon, error)
	CreateEvent(ctx context.Context, event *models.Event) error
	CreateSermon(ctx context.Context, sermon *models.Sermon) error
}

type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository returns a new ContentRepository implementation.
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > maxContentPage {
		return maxContentPage
	}
	return limit
}

// ListUpcomingEvents returns events that have not ended by from, soonest first.
func (r *contentRepository) ListUpcomingEvents(ctx context.Context, siteID uint, from int64, limit int) ([]models.Event, error) {
	defer observability.TrackQuery("list", "events")()
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND end_time >= ?", siteID, from).
		Order("start_time ASC").Order("id ASC").
		Limit(clampLimit(limit)).
		Find(&events).Error
	if err != nil {
		return nil, translateError(err, "Event", nil)
	}
	return events, nil
}

// ListSermons returns sermons newest first.
func (r *contentRepository) ListSermons(ctx context.Context, siteID uint, limit, offset int) ([]models.Sermon, error) {
	defer observability.TrackQuery("list", "sermons")()
	if offset < 0 {
		offset = 0
	}
	var sermons []models.Sermon
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("date DESC").Order("id DESC").
		Limit(clampLimit(limit)).Offset(offset).
		Find(&sermons).Error
	if err != nil {
		return nil, translateError(err, "Sermon", nil)
	}
	return sermons, nil
}

func (r *contentRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.EndTime < event.StartTime {
		return models.NewFieldValidationError([]models.FieldError{{Field: "end_time", Message: "must not be before start_time"}})
	}
	return translateError(r.db.WithContext(ctx).Create(event).Error, "Event", nil)
}

func (r *contentRepository) CreateSermon(ctx context.Context, sermon *models.Sermon) error {
	return translateError(r.db.WithContext(ctx).Create(sermon).Error, "Sermon", nil)
}
