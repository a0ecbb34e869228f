// Package dummydb provides in-memory, scope-honoring repositories for tests.
package dummydb

import (
	"sync"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/school"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/tenant"
	"github.com/trezcool/academia/core/user"
)

type (
	DB struct {
		school   *schoolTable
		user     *userTable
		student  *studentTable
		sequence *sequenceTable
	}

	schoolTable struct {
		sync.RWMutex
		schools  map[string]*school.School
		branches map[string]*school.Branch
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	sequenceTable struct {
		sync.Mutex
		table map[seqKey]int
	}

	seqKey struct {
		schoolID string
		year     int
	}
)

func Open() (*DB, error) {
	db := &DB{
		school: &schoolTable{
			schools:  make(map[string]*school.School),
			branches: make(map[string]*school.Branch),
		},
		user:     &userTable{table: make(map[string]*user.User)},
		student:  &studentTable{table: make(map[string]*student.Student)},
		sequence: &sequenceTable{table: make(map[seqKey]int)},
	}
	return db, nil
}

// inScope reports whether a row belonging to schoolID is visible to the scope.
func inScope(scope tenant.Scope, schoolID string) bool {
	if !scope.Bound() {
		return true
	}
	return scope.SchoolID == schoolID
}

// branchInScope reports whether a row's branch is visible to the scope.
// School-wide scopes (no branch) see every branch.
func branchInScope(scope tenant.Scope, branchID null.String) bool {
	if !scope.BranchBound() {
		return true
	}
	return branchID.Valid && branchID.String == scope.BranchID.String
}
