package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/tenant"
)

type sequenceRepository struct {
	exec core.DBExecutor
}

var _ admission.SequenceRepository = (*sequenceRepository)(nil) // interface compliance check

func NewSequenceRepository(exec core.DBExecutor) *sequenceRepository {
	return &sequenceRepository{exec: exec}
}

// NextSequenceValue increments and returns the (school, year) counter in a
// single statement; the upsert creates it at 1 on first issuance. Two
// concurrent increments can never observe the same value: the row lock taken
// by ON CONFLICT DO UPDATE serializes them.
func (repo sequenceRepository) NextSequenceValue(ctx context.Context, scope tenant.Scope, year int, exec ...core.DBExecutor) (int, error) {
	if err := scope.RequireSchool(); err != nil {
		return 0, err
	}

	const q = `
		INSERT INTO admission_sequence (school_id, academic_year, current_value, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (school_id, academic_year)
		DO UPDATE SET current_value = admission_sequence.current_value + 1, updated_at = now()
		RETURNING current_value`

	var value int
	if err := getExec(repo.exec, exec).QueryRowContext(ctx, q, scope.SchoolID, year).Scan(&value); err != nil {
		return 0, trapConflictErr(err, "incrementing admission sequence")
	}
	return value, nil
}

func (repo sequenceRepository) CurrentSequenceValue(ctx context.Context, scope tenant.Scope, year int, exec ...core.DBExecutor) (int, error) {
	if err := scope.RequireSchool(); err != nil {
		return 0, err
	}

	const q = `SELECT COALESCE(
		(SELECT current_value FROM admission_sequence WHERE school_id = $1 AND academic_year = $2), 0)`

	var value int
	if err := getExec(repo.exec, exec).QueryRowContext(ctx, q, scope.SchoolID, year).Scan(&value); err != nil {
		return 0, errors.Wrap(err, "reading admission sequence")
	}
	return value, nil
}

func (repo sequenceRepository) SetSequenceValue(ctx context.Context, scope tenant.Scope, year, value int, exec ...core.DBExecutor) error {
	if err := scope.RequireSchool(); err != nil {
		return err
	}

	const q = `
		INSERT INTO admission_sequence (school_id, academic_year, current_value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (school_id, academic_year)
		DO UPDATE SET current_value = EXCLUDED.current_value, updated_at = now()`

	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, scope.SchoolID, year, value); err != nil {
		return trapConflictErr(err, "setting admission sequence")
	}
	return nil
}
