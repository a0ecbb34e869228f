package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/tenant"
)

type studentRepository struct {
	db  *studentTable
	sch *schoolTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student, sch: db.school}
}

func (repo *studentRepository) query(scope tenant.Scope) []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, st := range repo.db.table {
		if inScope(scope, st.SchoolID) && branchInScope(scope, st.BranchID) {
			students = append(students, *st)
		}
	}
	return students
}

func (repo *studentRepository) CreateStudent(_ context.Context, scope tenant.Scope, st student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if !inScope(scope, st.SchoolID) {
		return student.Student{}, student.ErrNotFound
	}
	if scope.BranchBound() {
		st.BranchID = scope.BranchID
	}
	st.ID = uuid.New().String()
	repo.db.table[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, scope tenant.Scope, id string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if st, ok := repo.db.table[id]; ok && inScope(scope, st.SchoolID) && branchInScope(scope, st.BranchID) {
		return *st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByAdmissionNo(_ context.Context, scope tenant.Scope, admNo string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, st := range repo.query(scope) {
		if st.AdmissionNo == admNo {
			return st, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(_ context.Context, scope tenant.Scope, filter *student.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := repo.query(scope)
	if filter == nil || filter.IsEmpty() {
		return students, nil
	}

	if filter.Search != "" {
		var filtered []student.Student
		for _, st := range students {
			if strings.Contains(strings.ToLower(st.Name), strings.ToLower(filter.Search)) ||
				strings.Contains(strings.ToLower(st.Email), strings.ToLower(filter.Search)) ||
				strings.Contains(strings.ToLower(st.AdmissionNo), strings.ToLower(filter.Search)) {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}
	if students != nil && filter.AcademicYear != 0 {
		var filtered []student.Student
		for _, st := range students {
			if st.AcademicYear == filter.AcademicYear {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}
	if students != nil && filter.BranchCode != "" {
		var branchID string
		repo.sch.RLock()
		for _, br := range repo.sch.branches {
			if inScope(scope, br.SchoolID) && br.Code == filter.BranchCode {
				branchID = br.ID
				break
			}
		}
		repo.sch.RUnlock()

		var filtered []student.Student
		for _, st := range students {
			if st.BranchID.Valid && st.BranchID.String == branchID {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}
	if students != nil && !filter.AdmittedFrom.IsZero() {
		var filtered []student.Student
		timeUTC := filter.AdmittedFrom.UTC()
		for _, st := range students {
			if st.AdmittedAt.Equal(timeUTC) || st.AdmittedAt.After(timeUTC) {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}
	if students != nil && !filter.AdmittedTo.IsZero() {
		var filtered []student.Student
		timeUTC := filter.AdmittedTo.UTC()
		for _, st := range students {
			if st.AdmittedAt.Before(timeUTC) || st.AdmittedAt.Equal(timeUTC) {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}
	return students, nil
}

func (repo *studentRepository) AdmissionNumbers(_ context.Context, scope tenant.Scope, _ ...core.DBExecutor) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	numbers := make([]string, 0, len(repo.db.table))
	for _, st := range repo.query(scope) {
		numbers = append(numbers, st.AdmissionNo)
	}
	return numbers, nil
}
