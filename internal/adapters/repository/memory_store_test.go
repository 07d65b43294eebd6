package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceko/resource-status-service/internal/core/domain"
)

var storeNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func stallInput(owner string) domain.ResourceInput {
	return domain.ResourceInput{
		Name:    "Stall " + owner,
		Type:    "Food Stall",
		Details: domain.StallDetails{OwnedBy: owner, StallNumber: 3, Status: domain.StallClosed},
	}
}

func roomInput(name, wing string, floor int) domain.ResourceInput {
	return domain.ResourceInput{
		Name:    name,
		Type:    "Classroom",
		Details: domain.RoomDetails{Wing: wing, Floor: floor, Room: name, Status: domain.RoomAvailable},
	}
}

func TestMemoryStore_CreateAssignsSequentialIDs(t *testing.T) {
	s := NewMemoryStore().WithClock(func() time.Time { return storeNow })
	ctx := context.Background()

	a, err := s.Create(ctx, roomInput("N101", "North", 1))
	require.NoError(t, err)
	b, err := s.Create(ctx, stallInput("LAG01-1001"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, storeNow, a.LastUpdated)
	assert.Nil(t, a.Verification)
	assert.Nil(t, a.UpdatedBy)
}

func TestMemoryStore_CreateRejectsInvalid(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Create(context.Background(), domain.ResourceInput{Name: "Broken", Type: "Stall",
		Details: domain.StallDetails{Status: domain.StallOpen}})

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "ownedBy")
}

func TestMemoryStore_UpdateRefreshesLastUpdated(t *testing.T) {
	now := storeNow
	s := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()
	created, err := s.Create(ctx, stallInput("LAG01-1001"))
	require.NoError(t, err)

	now = storeNow.Add(time.Minute)
	status := domain.StatusOpen
	by := "LAG01-1001"
	updated, err := s.Update(ctx, created.ID, domain.ResourcePatch{Status: &status, UpdatedBy: &by})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOpen, updated.Status())
	assert.Equal(t, now, updated.LastUpdated)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, "LAG01-1001", *updated.UpdatedBy)

	// An empty patch still refreshes the timestamp.
	now = storeNow.Add(2 * time.Minute)
	touched, err := s.Update(ctx, created.ID, domain.ResourcePatch{})
	require.NoError(t, err)
	assert.Equal(t, now, touched.LastUpdated)
}

func TestMemoryStore_UpdateErrors(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	created, err := s.Create(ctx, roomInput("N101", "North", 1))
	require.NoError(t, err)

	open := domain.StatusOpen
	_, err = s.Update(ctx, created.ID, domain.ResourcePatch{Status: &open})
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr, "rooms cannot be open")

	_, err = s.Update(ctx, 99, domain.ResourcePatch{Status: &open})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAvailable, got.Status(), "failed update must not change the stored resource")
}

func TestMemoryStore_VersionedWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, v, err := s.CreateVersioned(ctx, stallInput("LAG01-1001"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	open := domain.StatusOpen
	updated, v, err := s.UpdateVersioned(ctx, created.ID, domain.ResourcePatch{Status: &open})
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, domain.StatusOpen, updated.Status())

	occupied := domain.StatusOccupied
	_, _, err = s.UpdateVersioned(ctx, created.ID, domain.ResourcePatch{Status: &occupied})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	_, _, err = s.CreateVersioned(ctx, domain.ResourceInput{Name: "", Type: "Hall", Details: domain.HallDetails{Status: domain.RoomAvailable}})
	require.Error(t, err)

	current, err := s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current, "rejected writes must not move the version")
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	created, err := s.Create(ctx, stallInput("LAG01-1001"))
	require.NoError(t, err)
	by := "LAG01-1001"
	_, err = s.Update(ctx, created.ID, domain.ResourcePatch{UpdatedBy: &by})
	require.NoError(t, err)

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	*got.UpdatedBy = "tampered"

	again, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "LAG01-1001", *again.UpdatedBy)
}

func TestMemoryStore_ListFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, in := range []domain.ResourceInput{
		roomInput("N101", "North", 1),
		roomInput("N201", "North", 2),
		roomInput("S101", "South", 1),
		stallInput("LAG01-1001"),
	} {
		_, err := s.Create(ctx, in)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter domain.ResourceFilter
		want   int
	}{
		{"all", domain.ResourceFilter{}, 4},
		{"rooms", domain.ResourceFilter{Category: domain.CategoryRoom}, 3},
		{"north", domain.ResourceFilter{Wing: "North"}, 2},
		{"north_floor_2", domain.ResourceFilter{Wing: "North", Floor: 2}, 1},
		{"closed", domain.ResourceFilter{Status: domain.StatusClosed}, 1},
		{"none", domain.ResourceFilter{Category: domain.CategoryHall}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for i := 1; i < len(got); i++ {
				assert.Less(t, got[i-1].ID, got[i].ID)
			}
		})
	}
}

func TestMemoryStore_GetByName(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.Create(ctx, roomInput("N101", "North", 1))
	require.NoError(t, err)
	_, err = s.Create(ctx, roomInput("Lab", "North", 1))
	require.NoError(t, err)
	_, err = s.Create(ctx, roomInput("Lab", "South", 1))
	require.NoError(t, err)

	got, err := s.GetByName(ctx, "N101")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	_, err = s.GetByName(ctx, "Missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.GetByName(ctx, "Lab")
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestMemoryStore_VersionIsMonotonic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.BumpVersion(ctx)
		}()
	}
	wg.Wait()

	v, err := s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), v)
}

func TestMemoryUserStore(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	u := domain.User{UserCode: "2024-1234", Username: "Juan", UserType: domain.UserStudent, IsActive: true}

	_, err := s.Create(ctx, u)
	require.NoError(t, err)
	_, err = s.Create(ctx, u)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, s.SetActive(ctx, "2024-1234", false))
	got, err := s.GetByCode(ctx, "2024-1234")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, s.SetActive(ctx, "2024-0000", true), domain.ErrNotFound)
	_, err = s.GetByCode(ctx, "2024-0000")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryContributorStore_Top(t *testing.T) {
	s := NewMemoryContributorStore()
	ctx := context.Background()
	owner := domain.Actor{UserCode: "LAG01-1001", UserType: domain.UserLagoonEmployee, Username: "Stall Owner"}
	student := domain.Actor{UserCode: "2024-1234", UserType: domain.UserStudent}

	require.NoError(t, s.Increment(ctx, student, storeNow))
	require.NoError(t, s.Increment(ctx, owner, storeNow))
	require.NoError(t, s.Increment(ctx, owner, storeNow.Add(time.Minute)))

	top, err := s.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "LAG01-1001", top[0].UserCode)
	assert.Equal(t, int64(2), top[0].UpdateCount)
	assert.Equal(t, storeNow.Add(time.Minute), top[0].LastActive)
	assert.Equal(t, "Stall Owner", top[0].Username)

	one, err := s.Top(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
