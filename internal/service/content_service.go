package service

import (
	"context"
	"time"

	"chif/internal/localtime"
	"chif/internal/models"
	"chif/internal/repository"
)

// EventView is an event with its times projected into the viewer's zone.
type EventView struct {
	models.Event
	When localtime.Span `json:"when"`
}

// SermonView is a sermon with its date projected into the viewer's zone.
type SermonView struct {
	models.Sermon
	Preached localtime.Rendering `json:"preached"`
}

type ContentService struct {
	repo         repository.ContentRepository
	now          func() time.Time
	queryTimeout time.Duration
}

func NewContentService(repo repository.ContentRepository, queryTimeout time.Duration) *ContentService {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &ContentService{repo: repo, now: time.Now, queryTimeout: queryTimeout}
}

// UpcomingEvents lists events of a tenant that have not ended yet.
func (s *ContentService) UpcomingEvents(ctx context.Context, siteID uint, viewerTZ string, limit int) ([]EventView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	events, err := s.repo.ListUpcomingEvents(ctx, siteID, s.now().Unix(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, EventView{Event: e, When: localtime.ToViewerSpan(e.StartTime, e.EndTime, viewerTZ)})
	}
	return out, nil
}

// Sermons lists a tenant's sermons newest first.
func (s *ContentService) Sermons(ctx context.Context, siteID uint, viewerTZ string, limit, offset int) ([]SermonView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	sermons, err := s.repo.ListSermons(ctx, siteID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]SermonView, 0, len(sermons))
	for _, sm := range sermons {
		out = append(out, SermonView{Sermon: sm, Preached: localtime.ToViewerLocal(sm.Date, viewerTZ)})
	}
	return out, nil
}
