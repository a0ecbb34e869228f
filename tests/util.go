package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/school"
	"github.com/trezcool/academia/core/tenant"
	"github.com/trezcool/academia/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	scope tenant.Scope,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), scope, usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateSchool(
	t *testing.T,
	repo school.Repository,
	name string,
	format admission.Format,
	sep string,
) school.School {
	t.Helper()

	now := time.Now().UTC()
	sch, err := repo.CreateSchool(context.Background(), school.School{
		Name:            name,
		AdmissionFormat: format,
		BranchSeparator: sep,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("CreateSchool(): %v", err)
	}
	return sch
}

func CreateBranch(
	t *testing.T,
	repo school.Repository,
	sch school.School,
	code, name string,
) school.Branch {
	t.Helper()

	scope := tenant.Scope{SchoolID: sch.ID}
	br, err := repo.CreateBranch(context.Background(), scope, school.Branch{
		SchoolID:  sch.ID,
		Code:      code,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateBranch(): %v", err)
	}
	return br
}

// BoundScope is the scope a school-bound account resolves to.
func BoundScope(sch school.School, roles ...string) tenant.Scope {
	return tenant.Scope{SchoolID: sch.ID, Roles: roles}
}

// UserScope mirrors what the API middleware would resolve for usr.
func UserScope(usr user.User) tenant.Scope {
	return tenant.Scope{
		SchoolID: usr.SchoolID.String,
		BranchID: usr.BranchID,
		Roles:    usr.Roles,
		Operator: usr.IsOperator(),
	}
}

// NullStr is a shorthand for optional string columns in test fixtures.
func NullStr(s string) null.String {
	return null.NewString(s, s != "")
}

// TestLogger swallows everything except Fatal; handler tests assert on HTTP
// responses, not log lines.
type TestLogger struct{}

func NewTestLogger() *TestLogger { return &TestLogger{} }

func (l TestLogger) Enable(bool)                       {}
func (l TestLogger) Debug(string, ...interface{})      {}
func (l TestLogger) Info(string, ...interface{})       {}
func (l TestLogger) Warn(string, ...interface{})       {}
func (l TestLogger) Error(string, ...interface{})      {}
func (l TestLogger) Fatal(msg string, _ ...interface{}) { panic(msg) }
