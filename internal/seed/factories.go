// Package seed creates demo data for development and tests: tenant sites,
// branches with weekly services, events and sermons.
package seed

import (
	"context"
	"fmt"
	"time"

	"chif/internal/models"
	"chif/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var (
	serviceTimes     = []string{"7:00 AM", "9:00 AM", "10:30 AM", "12:00 PM", "5:00 PM", "6:30 PM", "7:00 PM"}
	serviceLabels    = []string{"Sunday Worship", "Bible Study", "Prayer Meeting", "Youth Service", "Communion Service", "Midweek Service"}
	serviceLocations = []string{"Main Sanctuary", "Fellowship Hall", "Chapel", "Youth Center", "Conference Room"}
	streamHosts      = []string{"https://youtube.com/live/", "https://zoom.us/j/", "https://facebook.com/live/"}
	eventKinds       = []string{"Conference", "Retreat", "Crusade", "Revival", "Workshop", "Outreach", "Concert"}
	preacherTitles   = []string{"Pastor", "Rev.", "Bishop", "Evangelist", "Minister"}
)

// Factory builds domain entities and persists them through the repositories.
type Factory struct {
	faker    *gofakeit.Faker
	branches repository.BranchRepository
	content  repository.ContentRepository
	now      time.Time
}

// NewFactory creates a Factory. A zero seed picks a time-based one; any
// other value reproduces the same data.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		faker:    gofakeit.New(seed),
		branches: repository.NewBranchRepository(db),
		content:  repository.NewContentRepository(db),
		now:      time.Now().UTC(),
	}
}

// BuildService returns one weekly slot. Online slots carry a stream link.
func (f *Factory) BuildService() models.Service {
	svc := models.Service{
		Day:      f.faker.RandomString(models.Weekdays),
		Type:     models.ServiceModeInPerson,
		Time:     f.faker.RandomString(serviceTimes),
		Location: f.faker.RandomString(serviceLocations),
	}
	label := f.faker.RandomString(serviceLabels)
	svc.ServiceType = &label
	if f.faker.Number(1, 4) == 1 {
		link := f.faker.RandomString(streamHosts) + f.faker.LetterN(10)
		svc.Type = models.ServiceModeOnline
		svc.Location = "Online"
		svc.Link = &link
	}
	return svc
}

// BuildBranch returns an unsaved branch with between one and four services.
func (f *Factory) BuildBranch(overrides ...func(*models.Branch)) *models.Branch {
	country := f.faker.Country()
	b := &models.Branch{
		Name:     f.faker.City() + " Branch",
		Country:  &country,
		Address:  fmt.Sprintf("%s %s, %s", f.faker.StreetNumber(), f.faker.StreetName(), f.faker.City()),
		Phone:    f.faker.Phone(),
		IsActive: f.faker.Number(1, 10) > 1,
		Order:    f.faker.Number(0, 20),
	}
	for i, n := 0, f.faker.Number(1, 4); i < n; i++ {
		b.Services = append(b.Services, f.BuildService())
	}
	for _, o := range overrides {
		o(b)
	}
	return b
}

// CreateBranch persists a built branch linked to siteIDs.
func (f *Factory) CreateBranch(ctx context.Context, siteIDs []uint, overrides ...func(*models.Branch)) (*models.Branch, error) {
	return f.branches.Create(ctx, f.BuildBranch(overrides...), siteIDs)
}

// CreateEvent persists an event starting within the next 90 days.
func (f *Factory) CreateEvent(ctx context.Context, siteID uint) (*models.Event, error) {
	start := f.faker.DateRange(f.now.Add(time.Hour), f.now.AddDate(0, 0, 90)).Truncate(30 * time.Minute)
	e := &models.Event{
		SiteID:      siteID,
		Title:       fmt.Sprintf("%s %s", f.faker.Adjective(), f.faker.RandomString(eventKinds)),
		Description: f.faker.Paragraph(1, 3, 12, " "),
		Location:    f.faker.RandomString(serviceLocations),
		StartTime:   start.Unix(),
		EndTime:     start.Add(time.Duration(f.faker.Number(1, 6)) * time.Hour).Unix(),
	}
	if err := f.content.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateSermon persists a sermon preached within the last year.
func (f *Factory) CreateSermon(ctx context.Context, siteID uint) (*models.Sermon, error) {
	date := f.faker.DateRange(f.now.AddDate(-1, 0, 0), f.now)
	s := &models.Sermon{
		SiteID:   siteID,
		Title:    f.faker.Sentence(4),
		Preacher: f.faker.RandomString(preacherTitles) + " " + f.faker.Name(),
		Date:     date.Unix(),
		VideoURL: "https://youtube.com/watch?v=" + f.faker.LetterN(11),
	}
	if err := f.content.CreateSermon(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
