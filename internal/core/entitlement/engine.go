// Package entitlement decides whether an identity may perform an action on a
// resource. Every function here is pure and safe for concurrent use.
package entitlement

import "github.com/spaceko/resource-status-service/internal/core/domain"

type Action string

const (
	ActionView       Action = "view"
	ActionUpdate     Action = "update"
	ActionVerify     Action = "verify"
	ActionCreateUser Action = "create_user"
)

// Denial reasons returned to callers. They are user facing.
const (
	ReasonNoResource        = "No resource specified"
	ReasonStudentRoomsOnly  = "Students can only update room availability"
	ReasonOwnStallOnly      = "You can only update your own stall"
	ReasonOwnOfficeOnly     = "You can only update your own office"
	ReasonNotAuthorized     = "Not authorized to update this resource"
	ReasonAdminsVerify      = "Only admins can verify resource status"
	ReasonSuperAdminsCreate = "Only SuperAdmins can create user accounts"
	ReasonUnknownAction     = "Unknown action"
)

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Err returns nil for an allowed decision and an *AuthorizationError
// carrying the reason otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &domain.AuthorizationError{Reason: d.Reason}
}

// Decide evaluates action for the identity (userType, userCode). resource
// is required for update and verify and ignored otherwise.
func Decide(userType domain.UserType, userCode string, action Action, resource *domain.Resource) Decision {
	switch action {
	case ActionView:
		return allow()

	case ActionUpdate:
		if resource == nil {
			return deny(ReasonNoResource)
		}
		if canUpdate(userType, userCode, *resource) {
			return allow()
		}
		return deny(updateDenialReason(userType))

	case ActionVerify:
		if resource == nil {
			return deny(ReasonNoResource)
		}
		if userType.IsAdminClass() {
			return allow()
		}
		return deny(ReasonAdminsVerify)

	case ActionCreateUser:
		if userType == domain.UserSuperAdmin {
			return allow()
		}
		return deny(ReasonSuperAdminsCreate)
	}
	return deny(ReasonUnknownAction)
}

func canUpdate(userType domain.UserType, userCode string, r domain.Resource) bool {
	switch userType {
	case domain.UserSuperAdmin, domain.UserAdmin:
		return true
	case domain.UserStudent:
		return r.Category() == domain.CategoryRoom
	case domain.UserLagoonEmployee:
		return r.Category() == domain.CategoryLagoonStall && r.OwnedBy() == userCode
	case domain.UserOfficeEmployee:
		return r.Category() == domain.CategoryService && r.OwnedBy() == userCode
	}
	return false
}

func updateDenialReason(userType domain.UserType) string {
	switch userType {
	case domain.UserStudent:
		return ReasonStudentRoomsOnly
	case domain.UserLagoonEmployee:
		return ReasonOwnStallOnly
	case domain.UserOfficeEmployee:
		return ReasonOwnOfficeOnly
	}
	return ReasonNotAuthorized
}

// AllowedCategories lists the categories a role works with. It drives
// client-side focus only and is not consulted by Decide for view.
func AllowedCategories(userType domain.UserType) []domain.Category {
	switch userType {
	case domain.UserSuperAdmin, domain.UserAdmin, domain.UserStudent:
		out := make([]domain.Category, len(domain.AllCategories))
		copy(out, domain.AllCategories)
		return out
	case domain.UserLagoonEmployee:
		return []domain.Category{domain.CategoryLagoonStall}
	case domain.UserOfficeEmployee:
		return []domain.Category{domain.CategoryService}
	}
	return nil
}

// OwnedResources filters resources down to the ones the identity may update.
func OwnedResources(userType domain.UserType, userCode string, resources []domain.Resource) []domain.Resource {
	out := make([]domain.Resource, 0, len(resources))
	for _, r := range resources {
		if canUpdate(userType, userCode, r) {
			out = append(out, r)
		}
	}
	return out
}
