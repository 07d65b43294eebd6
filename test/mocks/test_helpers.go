package mocks

import (
	"time"

	"github.com/spaceko/resource-status-service/internal/core/domain"
)

// LagoonStall builds the stall resource used across synchronizer tests.
func LagoonStall(id int64, owner string, status domain.StallStatus) domain.Resource {
	return domain.Resource{
		ID:      id,
		Name:    "Lagoon Stall 1",
		Type:    "Food Stall",
		Details: domain.StallDetails{OwnedBy: owner, StallNumber: 1, Status: status},
	}
}

// Room builds a room resource.
func Room(id int64, name, wing string, floor int, status domain.RoomStatus) domain.Resource {
	return domain.Resource{
		ID:      id,
		Name:    name,
		Type:    "Classroom",
		Details: domain.RoomDetails{Wing: wing, Floor: floor, Room: name, Status: status},
	}
}

// Office builds a service resource.
func Office(id int64, name, owner string, status domain.StallStatus) domain.Resource {
	return domain.Resource{
		ID:      id,
		Name:    name,
		Type:    "Office",
		Details: domain.ServiceDetails{OwnedBy: owner, Status: status},
	}
}

// ActorFor builds an authenticated actor for code, deriving the role from it.
func ActorFor(code string) domain.Actor {
	t, _ := domain.UserTypeForCode(code)
	return domain.Actor{UserCode: code, UserType: t, Username: "user " + code, SessionID: "session-" + code}
}

// ActiveUser builds an active user record for code.
func ActiveUser(code, name string) domain.User {
	t, _ := domain.UserTypeForCode(code)
	return domain.User{
		UserCode:  code,
		Username:  name,
		UserType:  t,
		IsActive:  true,
		CreatedBy: domain.SuperAdminCode,
		CreatedAt: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

// FixedClock returns a clock func pinned to t and a setter to move it.
func FixedClock(t time.Time) (now func() time.Time, set func(time.Time)) {
	cur := t
	return func() time.Time { return cur }, func(n time.Time) { cur = n }
}
