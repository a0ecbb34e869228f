package tenant

import (
	"errors"
	"strings"

	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrSchoolMismatch = errors.New("school scope mismatch")
	ErrBranchMismatch = errors.New("branch scope mismatch")
	ErrSchoolRequired = errors.New("school scope required")

	// SystemScope is the unbound scope used by internal flows that run before
	// a request scope exists (authentication lookups, provisioning, CLI).
	// Never hand it to request-handling code.
	SystemScope = Scope{Operator: true}
)

// Scope is the resolved (school, branch) pair governing what a request may
// access. It is derived once per request from the session claims and never
// mutated afterwards; every data operation downstream is confined to it.
type Scope struct {
	SchoolID string
	BranchID null.String
	Roles    []string
	Operator bool
}

// Bound reports whether the scope is confined to a single school.
// An unbound scope is only legal for platform operators and lets data
// operations pass through unfiltered (cross-tenant administration).
func (s Scope) Bound() bool { return s.SchoolID != "" }

// BranchBound reports whether the scope is further confined to a single
// branch within its school. Branch-bound callers only see rows of their own
// branch; school-wide callers (no branch on the session) see the whole school.
func (s Scope) BranchBound() bool { return s.Bound() && s.BranchID.Valid }

// RequireSchool errors when a tenant-demanding operation runs under an
// unbound scope.
func (s Scope) RequireSchool() error {
	if !s.Bound() {
		return ErrSchoolRequired
	}
	return nil
}

func (s Scope) HasRolePrefix(prefix string) bool {
	for _, role := range s.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

// Resolve establishes the request scope from the session token claims and the
// school ID declared by the request itself (route path parameter).
//
// A caller bound to a school by its token may only declare that same school:
// any disagreement fails closed with ErrSchoolMismatch, an authorization
// failure rather than a validation one. A platform operator (no token school)
// takes the scope from the path parameter when present, otherwise the scope
// stays unbound and tenant-demanding handlers must reject via RequireSchool.
func Resolve(tokenSchoolID string, tokenBranchID null.String, roles []string, operator bool, pathSchoolID string) (Scope, error) {
	if tokenSchoolID != "" {
		if pathSchoolID != "" && pathSchoolID != tokenSchoolID {
			return Scope{}, ErrSchoolMismatch
		}
		return Scope{
			SchoolID: tokenSchoolID,
			BranchID: tokenBranchID,
			Roles:    roles,
			Operator: operator,
		}, nil
	}

	if !operator {
		// a non-operator token without a school is malformed; fail closed
		return Scope{}, ErrSchoolMismatch
	}

	return Scope{
		SchoolID: pathSchoolID,
		Roles:    roles,
		Operator: true,
	}, nil
}
