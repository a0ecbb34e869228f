package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/school"
	"github.com/trezcool/academia/core/tenant"
)

type (
	schoolRow struct {
		ID              string    `db:"id"`
		Name            string    `db:"name"`
		AdmissionFormat string    `db:"admission_format"`
		BranchSeparator string    `db:"branch_separator"`
		CreatedAt       time.Time `db:"created_at"`
		UpdatedAt       time.Time `db:"updated_at"`
	}

	branchRow struct {
		ID        string    `db:"id"`
		SchoolID  string    `db:"school_id"`
		Code      string    `db:"code"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}

	schoolRepository struct {
		exec core.DBExecutor
	}
)

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{exec: exec}
}

const (
	schoolCols = "id, name, admission_format, branch_separator, created_at, updated_at"
	branchCols = "id, school_id, code, name, created_at"
)

func (r schoolRow) toSchool() school.School {
	return school.School{
		ID:              r.ID,
		Name:            r.Name,
		AdmissionFormat: admission.Format(r.AdmissionFormat),
		BranchSeparator: r.BranchSeparator,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (r branchRow) toBranch() school.Branch {
	return school.Branch{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		Code:      r.Code,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
}

func (repo schoolRepository) querySchools(ctx context.Context, exe core.DBExecutor, query string, args []interface{}) ([]school.School, error) {
	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var schoolRows []schoolRow
	if err = sqlx.StructScan(rows, &schoolRows); err != nil {
		return nil, err
	}
	schools := make([]school.School, 0, len(schoolRows))
	for _, r := range schoolRows {
		schools = append(schools, r.toSchool())
	}
	return schools, nil
}

func (repo schoolRepository) queryBranches(ctx context.Context, exe core.DBExecutor, query string, args []interface{}) ([]school.Branch, error) {
	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var branchRows []branchRow
	if err = sqlx.StructScan(rows, &branchRows); err != nil {
		return nil, err
	}
	branches := make([]school.Branch, 0, len(branchRows))
	for _, r := range branchRows {
		branches = append(branches, r.toBranch())
	}
	return branches, nil
}

func (repo schoolRepository) CheckSchoolNameUniqueness(ctx context.Context, name string, exec ...core.DBExecutor) error {
	const q = `SELECT EXISTS (SELECT 1 FROM school WHERE name = $1)`

	var exists bool
	if err := getExec(repo.exec, exec).QueryRowContext(ctx, q, name).Scan(&exists); err != nil {
		return errors.Wrap(err, "checking school name uniqueness")
	}
	if exists {
		return school.ErrNameExists
	}
	return nil
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	sch.ID = uuid.New().String()

	const q = `
		INSERT INTO school (id, name, admission_format, branch_separator, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := getExec(repo.exec, exec).ExecContext(ctx, q,
		sch.ID, sch.Name, string(sch.AdmissionFormat), sch.BranchSeparator, sch.CreatedAt, sch.UpdatedAt)
	if err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, scope tenant.Scope, id string, exec ...core.DBExecutor) (school.School, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.School{}, school.ErrNotFound
	}

	q := new(scopedQuery).where("id = ?", id).confine(scope, "id")
	query, args := q.render("SELECT "+schoolCols+" FROM school", "LIMIT 1")

	schools, err := repo.querySchools(ctx, getExec(repo.exec, exec), query, args)
	if err != nil {
		return school.School{}, errors.Wrap(err, "finding school")
	}
	if len(schools) == 0 {
		return school.School{}, school.ErrNotFound
	}
	return schools[0], nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, scope tenant.Scope, exec ...core.DBExecutor) ([]school.School, error) {
	q := new(scopedQuery).confine(scope, "id")
	query, args := q.render("SELECT "+schoolCols+" FROM school", "ORDER BY name ASC")

	schools, err := repo.querySchools(ctx, getExec(repo.exec, exec), query, args)
	if err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	return schools, nil
}

func (repo schoolRepository) CheckBranchCodeUniqueness(ctx context.Context, scope tenant.Scope, code string, exec ...core.DBExecutor) error {
	q := new(scopedQuery).where("code = ?", code).confine(scope, "school_id")
	query, args := q.render("SELECT EXISTS (SELECT 1 FROM branch", ")")

	var exists bool
	if err := getExec(repo.exec, exec).QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return errors.Wrap(err, "checking branch code uniqueness")
	}
	if exists {
		return school.ErrCodeExists
	}
	return nil
}

// CreateBranch stamps the scope's school, not the struct's: a bound caller
// cannot attach a branch to another tenant.
func (repo schoolRepository) CreateBranch(ctx context.Context, scope tenant.Scope, br school.Branch, exec ...core.DBExecutor) (school.Branch, error) {
	br.ID = uuid.New().String()
	if scope.Bound() {
		br.SchoolID = scope.SchoolID
	}

	const q = `INSERT INTO branch (id, school_id, code, name, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := getExec(repo.exec, exec).ExecContext(ctx, q, br.ID, br.SchoolID, br.Code, br.Name, br.CreatedAt)
	if err != nil {
		return school.Branch{}, errors.Wrap(err, "inserting branch")
	}
	return br, nil
}

func (repo schoolRepository) QueryBranches(ctx context.Context, scope tenant.Scope, exec ...core.DBExecutor) ([]school.Branch, error) {
	q := new(scopedQuery).confine(scope, "school_id")
	query, args := q.render("SELECT "+branchCols+" FROM branch", "ORDER BY code ASC")

	branches, err := repo.queryBranches(ctx, getExec(repo.exec, exec), query, args)
	if err != nil {
		return nil, errors.Wrap(err, "querying branches")
	}
	return branches, nil
}

func (repo schoolRepository) GetBranchByCode(ctx context.Context, scope tenant.Scope, code string, exec ...core.DBExecutor) (school.Branch, error) {
	q := new(scopedQuery).where("code = ?", code).confine(scope, "school_id")
	query, args := q.render("SELECT "+branchCols+" FROM branch", "LIMIT 1")

	branches, err := repo.queryBranches(ctx, getExec(repo.exec, exec), query, args)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.Branch{}, school.ErrBranchNotFound
		}
		return school.Branch{}, errors.Wrap(err, "finding branch")
	}
	if len(branches) == 0 {
		return school.Branch{}, school.ErrBranchNotFound
	}
	return branches[0], nil
}
