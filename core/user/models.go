package user

import (
	"context"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/tenant"
)

// Roles
const (
	// Platform operator; not bound to any school
	RoleOperator      = "operator:"
	RoleOperatorAdmin = "operator:admin"

	// School admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Registrar (admissions desk)
	RoleRegistrar = "registrar:"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

var (
	OperatorRoles  = []string{RoleOperator, RoleOperatorAdmin}
	AdminRoles     = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal}
	RegistrarRoles = []string{RoleRegistrar}
	TeacherRoles   = []string{RoleTeacher}
	StudentRoles   = []string{RoleStudent}
	AllRoles       = getAllRoles()

	rolePriorities = map[string]int{
		// Operators: 50 - 41
		RoleOperatorAdmin: 50,
		RoleOperator:      41,

		// Admins: 30 - 21
		RoleAdminOwner:     30,
		RoleAdminPrincipal: 29,
		RoleAdmin:          21,

		// Registrars: 20 - 16
		RoleRegistrar: 16,

		// Teachers: 15 - 11
		RoleTeacher: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Registrar", Value: RoleRegistrar},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Principal", Value: RoleAdminPrincipal},
		{Name: "Admin Owner", Value: RoleAdminOwner},
		{Name: "Operator", Value: RoleOperator},
		{Name: "Operator Admin", Value: RoleOperatorAdmin},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 8)
	all = append(all, OperatorRoles...)
	all = append(all, AdminRoles...)
	all = append(all, RegistrarRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is a staff or student account. SchoolID is null only for platform
// operators; every other account is bound to its school and all of its data
// access is confined to that scope.
type User struct {
	ID           string      `json:"id"`
	SchoolID     null.String `json:"school_id"`
	BranchID     null.String `json:"branch_id"`
	Name         string      `json:"name"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	IsActive     *bool       `json:"is_active"`
	Roles        []string    `json:"roles"`
	PasswordHash []byte      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at"` // UTC
	LastLogin    time.Time   `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsOperator() bool {
	return u.RoleStartsWith(RoleOperator) && !u.SchoolID.Valid
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsRegistrar() bool {
	return u.RoleStartsWith(RoleRegistrar)
}

func (u *User) IsTeacher() bool {
	return u.RoleStartsWith(RoleTeacher)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string      `json:"name" validate:"required"`
	Username        string      `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string      `json:"email" validate:"omitempty,email"`
	BranchID        null.String `json:"branch_id"`
	Password        string      `json:"password" validate:"required"`
	PasswordConfirm string      `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string    `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, scope tenant.Scope, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, scope, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string      `json:"name"`
	Username        string      `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string      `json:"email" validate:"omitempty,email"`
	BranchID        null.String `json:"branch_id"`
	IsActive        *bool       `json:"is_active"`
	Roles           []string    `json:"roles" validate:"omitempty,allroles"`
	Password        string      `json:"password" validate:"omitempty"`
	PasswordConfirm string      `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, scope tenant.Scope, origUsr User, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, scope, uu.Username, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate() error { return core.Validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single user; exactly one field should be set.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}
