package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"chif/internal/access"
	"chif/internal/cache"
	"chif/internal/featureflags"
	"chif/internal/models"
	"chif/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// branchRepoStub is a stub for repository.BranchRepository.
type branchRepoStub struct {
	listFn    func(context.Context, repository.BranchFilter) ([]models.Branch, error)
	getByIDFn func(context.Context, uint) (*models.Branch, error)
	createFn  func(context.Context, *models.Branch, []uint) (*models.Branch, error)
	updateFn  func(context.Context, uint, repository.BranchChanges) (*models.Branch, error)
	deleteFn  func(context.Context, uint) error
}

func (s *branchRepoStub) List(ctx context.Context, filter repository.BranchFilter) ([]models.Branch, error) {
	return s.listFn(ctx, filter)
}
func (s *branchRepoStub) GetByID(ctx context.Context, id uint) (*models.Branch, error) {
	return s.getByIDFn(ctx, id)
}
func (s *branchRepoStub) Create(ctx context.Context, b *models.Branch, siteIDs []uint) (*models.Branch, error) {
	return s.createFn(ctx, b, siteIDs)
}
func (s *branchRepoStub) Update(ctx context.Context, id uint, changes repository.BranchChanges) (*models.Branch, error) {
	return s.updateFn(ctx, id, changes)
}
func (s *branchRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopBranchRepo() *branchRepoStub {
	return &branchRepoStub{
		listFn:    func(_ context.Context, _ repository.BranchFilter) ([]models.Branch, error) { return nil, nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Branch, error) { return &models.Branch{ID: id}, nil },
		createFn: func(_ context.Context, b *models.Branch, _ []uint) (*models.Branch, error) {
			b.ID = 1
			return b, nil
		},
		updateFn: func(_ context.Context, id uint, _ repository.BranchChanges) (*models.Branch, error) {
			return &models.Branch{ID: id}, nil
		},
		deleteFn: func(_ context.Context, _ uint) error { return nil },
	}
}

var (
	admin  = &access.Session{UserID: "u-admin", Role: access.RoleAdmin}
	staff  = &access.Session{UserID: "u-staff", Role: access.RoleStaff}
	member = &access.Session{UserID: "u-member", Role: access.RoleMember}
)

func ptr[T any](v T) *T { return &v }

func newCachedService(t *testing.T, repo repository.BranchRepository) (*BranchService, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc := NewBranchService(repo, rdb, featureflags.NewManager("branch_cache=on"), BranchServiceConfig{CacheTTL: cache.BranchTTL})
	return svc, mr, rdb
}

func validCreateInput() CreateBranchInput {
	return CreateBranchInput{
		Name:    " Ikeja ",
		Address: "12 Allen Avenue",
		Phone:   "+234 800 000 0000",
		Services: []ServiceInput{
			{Day: "sunday", Type: "In-Person", Time: "9:00 AM", Location: "Main hall", Link: ptr("https://ignored.example")},
			{Day: "Wednesday", Type: "Online", Time: "6:00 PM", Location: "YouTube", Link: ptr(" https://youtube.com/live ")},
		},
	}
}

func TestBranchService_Create(t *testing.T) {
	repo := noopBranchRepo()
	var gotBranch *models.Branch
	var gotSites []uint
	repo.createFn = func(_ context.Context, b *models.Branch, siteIDs []uint) (*models.Branch, error) {
		gotBranch, gotSites = b, siteIDs
		b.ID = 9
		return b, nil
	}
	svc := NewBranchService(repo, nil, nil, BranchServiceConfig{})

	created, err := svc.Create(context.Background(), staff, 4, validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, uint(9), created.ID)

	assert.Equal(t, "Ikeja", gotBranch.Name)
	assert.True(t, gotBranch.IsActive, "new branches default to active")
	assert.Equal(t, 0, gotBranch.Order)
	assert.Equal(t, []uint{4}, gotSites, "defaults to the current tenant")

	require.Len(t, gotBranch.Services, 2)
	assert.Equal(t, "Sunday", gotBranch.Services[0].Day)
	assert.Nil(t, gotBranch.Services[0].Link, "in-person slots carry no link")
	require.NotNil(t, gotBranch.Services[1].Link)
	assert.Equal(t, "https://youtube.com/live", *gotBranch.Services[1].Link)
}

func TestBranchService_CreateExplicitSitesAndInactive(t *testing.T) {
	repo := noopBranchRepo()
	var gotBranch *models.Branch
	var gotSites []uint
	repo.createFn = func(_ context.Context, b *models.Branch, siteIDs []uint) (*models.Branch, error) {
		gotBranch, gotSites = b, siteIDs
		return b, nil
	}
	svc := NewBranchService(repo, nil, nil, BranchServiceConfig{})

	in := validCreateInput()
	in.SiteIDs = []uint{2, 3}
	in.IsActive = ptr(false)
	in.Order = ptr(4)
	_, err := svc.Create(context.Background(), admin, 1, in)
	require.NoError(t, err)
	assert.Equal(t, []uint{2, 3}, gotSites)
	assert.False(t, gotBranch.IsActive)
	assert.Equal(t, 4, gotBranch.Order)
}

func TestBranchService_CreateValidationListsEveryField(t *testing.T) {
	repo := noopBranchRepo()
	repo.createFn = func(context.Context, *models.Branch, []uint) (*models.Branch, error) {
		t.Fatal("repository must not be called with invalid input")
		return nil, nil
	}
	svc := NewBranchService(repo, nil, nil, BranchServiceConfig{})

	_, err := svc.Create(context.Background(), admin, 1, CreateBranchInput{
		Order: ptr(-1),
		Services: []ServiceInput{
			{Day: "Funday", Type: "Hybrid", Time: "", Location: ""},
		},
	})
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeValidation, appErr.Code)

	fields := map[string]bool{}
	for _, f := range appErr.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"name", "address", "phone", "order", "services[0].day", "services[0].type", "services[0].time", "services[0].location"} {
		assert.True(t, fields[want], "missing field error for %s", want)
	}
}

func TestBranchService_ManageRequiresCapability(t *testing.T) {
	svc := NewBranchService(noopBranchRepo(), nil, nil, BranchServiceConfig{})
	ctx := context.Background()

	for _, sess := range []*access.Session{nil, member} {
		_, err := svc.Create(ctx, sess, 1, validCreateInput())
		assert.True(t, models.IsCode(err, models.CodeForbidden))
		_, err = svc.Update(ctx, sess, 1, UpdateBranchInput{Name: ptr("x")})
		assert.True(t, models.IsCode(err, models.CodeForbidden))
		assert.True(t, models.IsCode(svc.Delete(ctx, sess, 1), models.CodeForbidden))
	}
}

func TestBranchService_UpdateBuildsChanges(t *testing.T) {
	repo := noopBranchRepo()
	var got repository.BranchChanges
	repo.updateFn = func(_ context.Context, id uint, changes repository.BranchChanges) (*models.Branch, error) {
		got = changes
		return &models.Branch{ID: id}, nil
	}
	svc := NewBranchService(repo, nil, nil, BranchServiceConfig{})

	_, err := svc.Update(context.Background(), staff, 5, UpdateBranchInput{
		Name:     ptr(" Renamed "),
		IsActive: ptr(false),
		Order:    ptr(0),
		Services: &[]ServiceInput{{Day: "MONDAY", Type: "In-Person", Time: "7 AM", Location: "Chapel"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Fields["name"])
	assert.Equal(t, false, got.Fields["is_active"])
	assert.Equal(t, 0, got.Fields["sort_order"])
	assert.NotContains(t, got.Fields, "address")
	require.NotNil(t, got.Services)
	assert.Equal(t, "Monday", (*got.Services)[0].Day)
	assert.Nil(t, got.SiteIDs, "absent site ids leave links untouched")
}

func TestBranchService_UpdateRejectsBlankRequired(t *testing.T) {
	svc := NewBranchService(noopBranchRepo(), nil, nil, BranchServiceConfig{})

	_, err := svc.Update(context.Background(), admin, 5, UpdateBranchInput{Name: ptr("  "), Phone: ptr("")})
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Len(t, appErr.Fields, 2)
}

func TestBranchService_GetPublicHidesInactiveAndForeign(t *testing.T) {
	repo := noopBranchRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Branch, error) {
		switch id {
		case 1:
			return &models.Branch{ID: 1, IsActive: true, Sites: []models.BranchSite{{BranchID: 1, SiteID: 7}}}, nil
		case 2:
			return &models.Branch{ID: 2, IsActive: false, Sites: []models.BranchSite{{BranchID: 2, SiteID: 7}}}, nil
		case 3:
			return &models.Branch{ID: 3, IsActive: true, Sites: []models.BranchSite{{BranchID: 3, SiteID: 8}}}, nil
		}
		return nil, models.NewNotFoundError("Branch", id)
	}
	svc := NewBranchService(repo, nil, nil, BranchServiceConfig{})
	ctx := context.Background()

	b, err := svc.GetPublic(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), b.ID)

	for _, id := range []uint{2, 3, 4} {
		_, err := svc.GetPublic(ctx, 7, id)
		assert.True(t, models.IsCode(err, models.CodeNotFound), "id %d", id)
	}
}

func TestBranchService_AdminReads(t *testing.T) {
	repo := noopBranchRepo()
	var gotFilter repository.BranchFilter
	repo.listFn = func(_ context.Context, f repository.BranchFilter) ([]models.Branch, error) {
		gotFilter = f
		return nil, nil
	}
	svc := NewBranchService(repo, nil, nil, BranchServiceConfig{})
	ctx := context.Background()

	_, err := svc.ListAdmin(ctx, member, AdminListInput{IncludeInactive: true})
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	site := uint(3)
	list, err := svc.ListAdmin(ctx, admin, AdminListInput{SiteID: &site, IncludeInactive: true})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.True(t, gotFilter.IncludeInactive)
	assert.Equal(t, &site, gotFilter.SiteID)

	_, err = svc.GetAdmin(ctx, member, 1)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	_, err = svc.GetAdmin(ctx, admin, 1)
	assert.NoError(t, err)
}

func TestBranchService_RepositoryCallsHaveDeadline(t *testing.T) {
	repo := noopBranchRepo()
	repo.listFn = func(ctx context.Context, _ repository.BranchFilter) ([]models.Branch, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return nil, models.NewInternalError(ctx.Err())
	}
	svc := NewBranchService(repo, nil, nil, BranchServiceConfig{QueryTimeout: 20 * time.Millisecond})

	_, err := svc.ListPublic(context.Background(), 1)
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBranchService_ListPublicCachesUntilMutation(t *testing.T) {
	repo := noopBranchRepo()
	calls := 0
	repo.listFn = func(_ context.Context, f repository.BranchFilter) ([]models.Branch, error) {
		calls++
		assert.False(t, f.IncludeInactive)
		require.NotNil(t, f.SiteID)
		return []models.Branch{{ID: uint(calls), Name: "Branch", IsActive: true}}, nil
	}
	svc, mr, _ := newCachedService(t, repo)
	ctx := context.Background()

	first, err := svc.ListPublic(ctx, 1)
	require.NoError(t, err)
	second, err := svc.ListPublic(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists(cache.BranchListKey(0, 1)))

	_, err = svc.ListPublic(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "tenants are cached separately")

	require.NoError(t, svc.Delete(ctx, admin, 10))
	gen, err := mr.Get(cache.BranchGenerationKey)
	require.NoError(t, err)
	assert.Equal(t, "1", gen)

	third, err := svc.ListPublic(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, uint(3), third[0].ID)
}

func TestBranchService_CacheExpiresAfterTTL(t *testing.T) {
	repo := noopBranchRepo()
	calls := 0
	repo.listFn = func(context.Context, repository.BranchFilter) ([]models.Branch, error) {
		calls++
		return []models.Branch{}, nil
	}
	svc, mr, _ := newCachedService(t, repo)
	ctx := context.Background()

	_, err := svc.ListPublic(ctx, 1)
	require.NoError(t, err)
	mr.FastForward(cache.BranchTTL + time.Second)
	_, err = svc.ListPublic(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBranchService_CacheFlagOff(t *testing.T) {
	repo := noopBranchRepo()
	calls := 0
	repo.listFn = func(context.Context, repository.BranchFilter) ([]models.Branch, error) {
		calls++
		return nil, nil
	}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewBranchService(repo, rdb, featureflags.NewManager(""), BranchServiceConfig{CacheTTL: time.Minute})

	list, err := svc.ListPublic(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, list, "empty lists serialize as []")
	_, _ = svc.ListPublic(context.Background(), 1)
	assert.Equal(t, 2, calls)
	assert.Empty(t, mr.Keys())
}

func TestBranchService_FailedMutationKeepsGeneration(t *testing.T) {
	repo := noopBranchRepo()
	repo.deleteFn = func(_ context.Context, id uint) error { return models.NewNotFoundError("Branch", id) }
	svc, mr, _ := newCachedService(t, repo)

	err := svc.Delete(context.Background(), admin, 3)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.False(t, mr.Exists(cache.BranchGenerationKey))
}

func TestBranchService_RedisDownFallsBackToRepository(t *testing.T) {
	repo := noopBranchRepo()
	repo.listFn = func(context.Context, repository.BranchFilter) ([]models.Branch, error) {
		return []models.Branch{{ID: 1}}, nil
	}
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	svc := NewBranchService(repo, rdb, featureflags.NewManager("branch_cache=on"), BranchServiceConfig{CacheTTL: time.Minute})
	list, err := svc.ListPublic(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.NoError(t, svc.Delete(context.Background(), admin, 1), "cache bump failures are not surfaced")
}

func TestBranchService_GetPublicCachesFoundBranchesOnly(t *testing.T) {
	repo := noopBranchRepo()
	calls := 0
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Branch, error) {
		calls++
		if id != 1 {
			return nil, models.NewNotFoundError("Branch", id)
		}
		return &models.Branch{ID: 1, Name: "Ikeja", IsActive: true, Sites: []models.BranchSite{{BranchID: 1, SiteID: 7}}}, nil
	}
	svc, mr, _ := newCachedService(t, repo)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		b, err := svc.GetPublic(ctx, 7, 1)
		require.NoError(t, err)
		assert.Equal(t, "Ikeja", b.Name)
	}
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists(cache.BranchDetailKey(0, 7, 1)))

	for i := 0; i < 2; i++ {
		_, err := svc.GetPublic(ctx, 7, 9)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	}
	assert.Equal(t, 3, calls, "misses go to the repository every time")

	_, err := svc.GetPublic(ctx, 8, 1)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "other tenants never see the cached entry")
	assert.False(t, mr.Exists(cache.BranchDetailKey(0, 8, 1)))
}
