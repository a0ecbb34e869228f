package dummydb

import (
	"context"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/tenant"
)

type sequenceRepository struct {
	db *sequenceTable
}

var _ admission.SequenceRepository = (*sequenceRepository)(nil) // interface compliance check

func NewSequenceRepository(db *DB) admission.SequenceRepository {
	return &sequenceRepository{db: db.sequence}
}

func (repo *sequenceRepository) NextSequenceValue(_ context.Context, scope tenant.Scope, year int, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := seqKey{schoolID: scope.SchoolID, year: year}
	repo.db.table[key]++
	return repo.db.table[key], nil
}

func (repo *sequenceRepository) CurrentSequenceValue(_ context.Context, scope tenant.Scope, year int, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.db.table[seqKey{schoolID: scope.SchoolID, year: year}], nil
}

func (repo *sequenceRepository) SetSequenceValue(_ context.Context, scope tenant.Scope, year, value int, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[seqKey{schoolID: scope.SchoolID, year: year}] = value
	return nil
}
