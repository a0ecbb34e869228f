package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/school"
	"github.com/trezcool/academia/core/tenant"
)

type schoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) CheckSchoolNameUniqueness(_ context.Context, name string, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sch := range repo.db.schools {
		if sch.Name == name {
			return school.ErrNameExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sch.ID = uuid.New().String()
	repo.db.schools[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, scope tenant.Scope, id string, _ ...core.DBExecutor) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sch, ok := repo.db.schools[id]; ok && inScope(scope, sch.ID) {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) QuerySchools(_ context.Context, scope tenant.Scope, _ ...core.DBExecutor) ([]school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	schools := make([]school.School, 0, len(repo.db.schools))
	for _, sch := range repo.db.schools {
		if inScope(scope, sch.ID) {
			schools = append(schools, *sch)
		}
	}
	return schools, nil
}

func (repo *schoolRepository) CheckBranchCodeUniqueness(_ context.Context, scope tenant.Scope, code string, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, br := range repo.db.branches {
		if inScope(scope, br.SchoolID) && br.Code == code {
			return school.ErrCodeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateBranch(_ context.Context, scope tenant.Scope, br school.Branch, _ ...core.DBExecutor) (school.Branch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if !inScope(scope, br.SchoolID) {
		return school.Branch{}, school.ErrNotFound
	}
	br.ID = uuid.New().String()
	repo.db.branches[br.ID] = &br
	return br, nil
}

func (repo *schoolRepository) QueryBranches(_ context.Context, scope tenant.Scope, _ ...core.DBExecutor) ([]school.Branch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	branches := make([]school.Branch, 0)
	for _, br := range repo.db.branches {
		if inScope(scope, br.SchoolID) {
			branches = append(branches, *br)
		}
	}
	return branches, nil
}

func (repo *schoolRepository) GetBranchByCode(_ context.Context, scope tenant.Scope, code string, _ ...core.DBExecutor) (school.Branch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, br := range repo.db.branches {
		if inScope(scope, br.SchoolID) && br.Code == code {
			return *br, nil
		}
	}
	return school.Branch{}, school.ErrBranchNotFound
}
