package auth

import (
	"strings"
	"time"
)

// Role is the self-declared role of an end-user account.
type Role string

const (
	RoleMom             Role = "mom"
	RoleDoctor          Role = "doctor"
	RoleMidwife         Role = "midwife"
	RoleServiceProvider Role = "service_provider"
	RoleAdmin           Role = "admin"
)

// ParseRole accepts any known account role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleMom, RoleDoctor, RoleMidwife, RoleServiceProvider, RoleAdmin:
		return r, true
	}
	return "", false
}

// Elevated reports whether the role needs admin approval to act on.
func (r Role) Elevated() bool {
	return r == RoleDoctor || r == RoleMidwife || r == RoleServiceProvider
}

// Address is a postal address. Country defaults to USA.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

const defaultCountry = "USA"

// Account is an end-user identity record.
type Account struct {
	ID                string
	FirstName         string
	LastName          string
	Email             string
	Phone             string
	Gender            string
	DateOfBirth       *time.Time
	Address           *Address
	Avatar            string
	Role              Role
	PasswordHash      string
	Active            bool
	Approved          bool
	EmailVerified     bool
	PhoneVerified     bool
	LoginAttempts     int
	LockUntil         *time.Time
	LastLogin         *time.Time
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Locked reports whether the lock window is still open at now.
func (a Account) Locked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

// FullName joins first and last name.
func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// AccountView is the client-safe projection of an Account. It never carries
// the password hash or lockout counters.
type AccountView struct {
	ID            string     `json:"id"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	FullName      string     `json:"fullName"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	Gender        string     `json:"gender,omitempty"`
	DateOfBirth   *time.Time `json:"dateOfBirth,omitempty"`
	Address       *Address   `json:"address,omitempty"`
	Avatar        string     `json:"avatar,omitempty"`
	Role          Role       `json:"role"`
	IsActive      bool       `json:"isActive"`
	IsApproved    bool       `json:"isApproved"`
	EmailVerified bool       `json:"isEmailVerified"`
	PhoneVerified bool       `json:"isPhoneVerified"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// View returns the safe projection.
func (a Account) View() AccountView {
	return AccountView{
		ID:            a.ID,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		FullName:      a.FullName(),
		Email:         a.Email,
		Phone:         a.Phone,
		Gender:        a.Gender,
		DateOfBirth:   a.DateOfBirth,
		Address:       a.Address,
		Avatar:        a.Avatar,
		Role:          a.Role,
		IsActive:      a.Active,
		IsApproved:    a.Approved,
		EmailVerified: a.EmailVerified,
		PhoneVerified: a.PhoneVerified,
		LastLogin:     a.LastLogin,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// ProfilePatch is a sparse profile update; nil fields are left untouched.
type ProfilePatch struct {
	FirstName *string  `json:"firstName"`
	LastName  *string  `json:"lastName"`
	Phone     *string  `json:"phone"`
	Avatar    *string  `json:"avatar"`
	Address   *Address `json:"address"`
}

// Apply merges the patch into a.
func (p ProfilePatch) Apply(a *Account) {
	if p.FirstName != nil {
		a.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		a.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Phone != nil {
		a.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Avatar != nil {
		a.Avatar = strings.TrimSpace(*p.Avatar)
	}
	if p.Address != nil {
		addr := *p.Address
		if addr.Country == "" {
			addr.Country = defaultCountry
		}
		a.Address = &addr
	}
}

// AccountFilter narrows admin account listings.
type AccountFilter struct {
	Role   Role
	Active *bool
	Search string
	Offset int
	Limit  int
}

// AdminRole ranks administrators.
type AdminRole string

const (
	AdminRoleSuper     AdminRole = "super_admin"
	AdminRoleAdmin     AdminRole = "admin"
	AdminRoleModerator AdminRole = "moderator"
)

// ParseAdminRole validates an admin role string.
func ParseAdminRole(s string) (AdminRole, bool) {
	switch r := AdminRole(strings.ToLower(strings.TrimSpace(s))); r {
	case AdminRoleSuper, AdminRoleAdmin, AdminRoleModerator:
		return r, true
	}
	return "", false
}

// Admin is an operator identity, separate from end-user accounts.
type Admin struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         AdminRole
	Permissions  []string
	Active       bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPermission reports whether the admin holds perm. Super admins hold all.
func (a Admin) HasPermission(perm string) bool {
	if a.Role == AdminRoleSuper {
		return true
	}
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// AdminView is the client-safe projection of an Admin.
type AdminView struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        AdminRole  `json:"role"`
	Permissions []string   `json:"permissions"`
	IsActive    bool       `json:"isActive"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// View returns the safe projection.
func (a Admin) View() AdminView {
	perms := a.Permissions
	if perms == nil {
		perms = []string{}
	}
	return AdminView{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Role:        a.Role,
		Permissions: perms,
		IsActive:    a.Active,
		LastLogin:   a.LastLogin,
		CreatedAt:   a.CreatedAt,
	}
}
