package domain

import "time"

type UserType string

const (
	UserStudent        UserType = "student"
	UserAdmin          UserType = "admin"
	UserLagoonEmployee UserType = "lagoon_employee"
	UserOfficeEmployee UserType = "office_employee"
	UserSuperAdmin     UserType = "superadmin"
)

func (t UserType) Valid() bool {
	switch t {
	case UserStudent, UserAdmin, UserLagoonEmployee, UserOfficeEmployee, UserSuperAdmin:
		return true
	}
	return false
}

// IsAdminClass reports whether the role may verify and provision resources.
func (t UserType) IsAdminClass() bool {
	return t == UserAdmin || t == UserSuperAdmin
}

// Attributes holds the optional role-specific profile fields.
type Attributes struct {
	StudentID  string `json:"studentId,omitempty" yaml:"studentId,omitempty"`
	Grade      string `json:"grade,omitempty" yaml:"grade,omitempty"`
	Section    string `json:"section,omitempty" yaml:"section,omitempty"`
	Office     string `json:"office,omitempty" yaml:"office,omitempty"`
	Position   string `json:"position,omitempty" yaml:"position,omitempty"`
	Workplace  string `json:"workplace,omitempty" yaml:"workplace,omitempty"`
	EmployeeID string `json:"employeeId,omitempty" yaml:"employeeId,omitempty"`
}

type User struct {
	UserCode   string     `json:"userCode" yaml:"userCode"`
	Username   string     `json:"username" yaml:"username"`
	UserType   UserType   `json:"userType" yaml:"userType"`
	IsActive   bool       `json:"isActive" yaml:"isActive"`
	CreatedBy  string     `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" yaml:"-"`
	Attributes Attributes `json:"attributes" yaml:"attributes,omitempty"`
}

// Validate checks the fields required to store a user and that the
// identity code format encodes the same role as UserType.
func (u User) Validate() error {
	verr := &ValidationError{}
	if u.Username == "" {
		verr.Add("username", "username is required")
	}
	if !u.UserType.Valid() {
		verr.Add("userType", "userType must be one of student, admin, lagoon_employee, office_employee, superadmin")
	}
	encoded, ok := UserTypeForCode(u.UserCode)
	switch {
	case !ok:
		verr.Add("userCode", "userCode does not match any identity code format")
	case u.UserType.Valid() && encoded != u.UserType:
		verr.Add("userCode", "userCode format does not match userType "+string(u.UserType))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	UserCode  string
	UserType  UserType
	Username  string
	SessionID string
}

// Contributor aggregates accepted updates per identity. Display only.
type Contributor struct {
	UserCode    string    `json:"userCode"`
	Username    string    `json:"username"`
	UserType    UserType  `json:"userType"`
	UpdateCount int64     `json:"updateCount"`
	LastActive  time.Time `json:"lastActive"`
}
