package domain

import "regexp"

// SuperAdminCode is the single literal identity code of the superadmin.
const SuperAdminCode = "SUPER-ADMIN"

var identityPatterns = []struct {
	userType UserType
	pattern  *regexp.Regexp
}{
	{UserStudent, regexp.MustCompile(`^20\d{2}-\d{4}$`)},
	{UserAdmin, regexp.MustCompile(`^PUP\d{2}-\d{4}$`)},
	{UserLagoonEmployee, regexp.MustCompile(`^LAG\d{2}-\d{4}$`)},
	{UserOfficeEmployee, regexp.MustCompile(`^OFC\d{2}-\d{4}$`)},
}

// UserTypeForCode returns the role encoded in an identity code.
func UserTypeForCode(code string) (UserType, bool) {
	if code == SuperAdminCode {
		return UserSuperAdmin, true
	}
	for _, p := range identityPatterns {
		if p.pattern.MatchString(code) {
			return p.userType, true
		}
	}
	return "", false
}

// ValidateIdentityCode format-checks a code without touching storage.
func ValidateIdentityCode(code string) bool {
	_, ok := UserTypeForCode(code)
	return ok
}
