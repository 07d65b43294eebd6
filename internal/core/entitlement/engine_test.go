package entitlement

import (
	"errors"
	"testing"

	"github.com/spaceko/resource-status-service/internal/core/domain"
)

func room() *domain.Resource {
	return &domain.Resource{ID: 1, Name: "S506", Type: "Classroom",
		Details: domain.RoomDetails{Wing: "South", Floor: 5, Room: "06", Status: domain.RoomAvailable}}
}

func hall() *domain.Resource {
	return &domain.Resource{ID: 2, Name: "Main Hall", Type: "Hall",
		Details: domain.HallDetails{Status: domain.RoomAvailable}}
}

func stall(owner string) *domain.Resource {
	return &domain.Resource{ID: 3, Name: "Stall 1", Type: "Food Stall",
		Details: domain.StallDetails{OwnedBy: owner, StallNumber: 1, Status: domain.StallClosed}}
}

func office(owner string) *domain.Resource {
	return &domain.Resource{ID: 4, Name: "Registrar", Type: "Office",
		Details: domain.ServiceDetails{OwnedBy: owner, Status: domain.StallOpen}}
}

func TestDecide_Update(t *testing.T) {
	tests := []struct {
		name     string
		userType domain.UserType
		code     string
		resource *domain.Resource
		allowed  bool
		reason   string
	}{
		{"superadmin_any_stall", domain.UserSuperAdmin, "SUPER-ADMIN", stall("LAG01-1001"), true, ""},
		{"admin_any_office", domain.UserAdmin, "PUP01-5678", office("OFC01-2001"), true, ""},
		{"student_room", domain.UserStudent, "2024-1234", room(), true, ""},
		{"student_hall", domain.UserStudent, "2024-1234", hall(), false, ReasonStudentRoomsOnly},
		{"student_stall", domain.UserStudent, "2024-1234", stall("LAG01-1001"), false, ReasonStudentRoomsOnly},
		{"lagoon_own_stall", domain.UserLagoonEmployee, "LAG01-1001", stall("LAG01-1001"), true, ""},
		{"lagoon_other_stall", domain.UserLagoonEmployee, "LAG01-9999", stall("LAG01-1001"), false, ReasonOwnStallOnly},
		{"lagoon_room", domain.UserLagoonEmployee, "LAG01-1001", room(), false, ReasonOwnStallOnly},
		{"office_own_service", domain.UserOfficeEmployee, "OFC01-2001", office("OFC01-2001"), true, ""},
		{"office_other_service", domain.UserOfficeEmployee, "OFC01-2002", office("OFC01-2001"), false, ReasonOwnOfficeOnly},
		{"office_owning_stall_code", domain.UserOfficeEmployee, "OFC01-2001", stall("OFC01-2001"), false, ReasonOwnOfficeOnly},
		{"unknown_role", domain.UserType("janitor"), "X", room(), false, ReasonNotAuthorized},
		{"no_resource", domain.UserSuperAdmin, "SUPER-ADMIN", nil, false, ReasonNoResource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.userType, tt.code, ActionUpdate, tt.resource)
			if d.Allowed != tt.allowed {
				t.Fatalf("expected allowed=%v, got %+v", tt.allowed, d)
			}
			if d.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, d.Reason)
			}
		})
	}
}

func TestDecide_StudentUpdateDependsOnlyOnCategory(t *testing.T) {
	for _, c := range domain.AllCategories {
		var r *domain.Resource
		switch c {
		case domain.CategoryRoom:
			r = room()
		case domain.CategoryHall:
			r = hall()
		case domain.CategoryLagoonStall:
			r = stall("LAG01-1001")
		case domain.CategoryService:
			r = office("OFC01-2001")
		}
		got := Decide(domain.UserStudent, "2024-1234", ActionUpdate, r).Allowed
		if got != (c == domain.CategoryRoom) {
			t.Errorf("category %s: allowed=%v", c, got)
		}
	}
}

func TestDecide_Verify(t *testing.T) {
	roles := []domain.UserType{
		domain.UserSuperAdmin, domain.UserAdmin, domain.UserStudent,
		domain.UserLagoonEmployee, domain.UserOfficeEmployee,
	}
	resources := []*domain.Resource{room(), hall(), stall("LAG01-1001"), office("OFC01-2001")}

	for _, role := range roles {
		for _, r := range resources {
			d := Decide(role, "LAG01-1001", ActionVerify, r)
			if d.Allowed != role.IsAdminClass() {
				t.Errorf("%s verify %s: allowed=%v", role, r.Name, d.Allowed)
			}
			if !d.Allowed && d.Reason != ReasonAdminsVerify {
				t.Errorf("%s verify %s: reason %q", role, r.Name, d.Reason)
			}
		}
	}

	if d := Decide(domain.UserAdmin, "PUP01-5678", ActionVerify, nil); d.Allowed || d.Reason != ReasonNoResource {
		t.Errorf("verify without resource: %+v", d)
	}
}

func TestDecide_ViewAndCreateUser(t *testing.T) {
	if !Decide(domain.UserOfficeEmployee, "OFC01-2001", ActionView, stall("LAG01-1001")).Allowed {
		t.Error("view should be unrestricted")
	}
	if !Decide(domain.UserStudent, "2024-1234", ActionView, nil).Allowed {
		t.Error("view without resource should be allowed")
	}

	if !Decide(domain.UserSuperAdmin, "SUPER-ADMIN", ActionCreateUser, nil).Allowed {
		t.Error("superadmin should create users")
	}
	d := Decide(domain.UserAdmin, "PUP01-5678", ActionCreateUser, nil)
	if d.Allowed || d.Reason != ReasonSuperAdminsCreate {
		t.Errorf("admin create_user: %+v", d)
	}

	d = Decide(domain.UserSuperAdmin, "SUPER-ADMIN", Action("delete"), room())
	if d.Allowed || d.Reason != ReasonUnknownAction {
		t.Errorf("unknown action: %+v", d)
	}
}

func TestDecision_Err(t *testing.T) {
	if err := allow().Err(); err != nil {
		t.Fatalf("allowed decision returned %v", err)
	}
	err := deny(ReasonOwnStallOnly).Err()
	var aErr *domain.AuthorizationError
	if !errors.As(err, &aErr) || aErr.Reason != ReasonOwnStallOnly {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestAllowedCategoriesAndOwnedResources(t *testing.T) {
	if got := AllowedCategories(domain.UserLagoonEmployee); len(got) != 1 || got[0] != domain.CategoryLagoonStall {
		t.Errorf("lagoon categories: %v", got)
	}
	if got := AllowedCategories(domain.UserStudent); len(got) != len(domain.AllCategories) {
		t.Errorf("student categories: %v", got)
	}
	if got := AllowedCategories(domain.UserType("nobody")); got != nil {
		t.Errorf("unknown role categories: %v", got)
	}

	all := []domain.Resource{*room(), *hall(), *stall("LAG01-1001"), *stall("LAG01-2002"), *office("OFC01-2001")}
	owned := OwnedResources(domain.UserLagoonEmployee, "LAG01-1001", all)
	if len(owned) != 1 || owned[0].OwnedBy() != "LAG01-1001" {
		t.Errorf("lagoon owned: %+v", owned)
	}
	if got := OwnedResources(domain.UserAdmin, "PUP01-5678", all); len(got) != len(all) {
		t.Errorf("admin owned %d of %d", len(got), len(all))
	}
	if got := OwnedResources(domain.UserStudent, "2024-1234", all); len(got) != 1 || got[0].Category() != domain.CategoryRoom {
		t.Errorf("student owned: %+v", got)
	}
}
