package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/tenant"
)

type (
	studentRow struct {
		ID           string      `db:"id"`
		SchoolID     string      `db:"school_id"`
		BranchID     null.String `db:"branch_id"`
		AdmissionNo  string      `db:"admission_no"`
		AcademicYear int         `db:"academic_year"`
		Name         string      `db:"name"`
		Email        string      `db:"email"`
		AdmittedAt   time.Time   `db:"admitted_at"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}

	studentRepository struct {
		exec core.DBExecutor
	}
)

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{exec: exec}
}

const studentCols = "id, school_id, branch_id, admission_no, academic_year, name, email, admitted_at, created_at, updated_at"

func (r studentRow) toStudent() student.Student {
	return student.Student{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		BranchID:     r.BranchID,
		AdmissionNo:  r.AdmissionNo,
		AcademicYear: r.AcademicYear,
		Name:         r.Name,
		Email:        r.Email,
		AdmittedAt:   r.AdmittedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (repo studentRepository) query(ctx context.Context, exe core.DBExecutor, query string, args []interface{}) ([]student.Student, error) {
	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var studentRows []studentRow
	if err = sqlx.StructScan(rows, &studentRows); err != nil {
		return nil, err
	}
	students := make([]student.Student, 0, len(studentRows))
	for _, r := range studentRows {
		students = append(students, r.toStudent())
	}
	return students, nil
}

// CreateStudent stamps the scope's school and, for branch-bound callers, the
// scope's branch: a bound caller cannot insert a student into another tenant
// regardless of what the struct claims.
func (repo studentRepository) CreateStudent(ctx context.Context, scope tenant.Scope, st student.Student, exec ...core.DBExecutor) (student.Student, error) {
	st.ID = uuid.New().String()
	if scope.Bound() {
		st.SchoolID = scope.SchoolID
		if scope.BranchID.Valid {
			st.BranchID = scope.BranchID
		}
	}

	const q = `
		INSERT INTO student (id, school_id, branch_id, admission_no, academic_year, name, email, admitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := getExec(repo.exec, exec).ExecContext(ctx, q,
		st.ID, st.SchoolID, st.BranchID, st.AdmissionNo, st.AcademicYear,
		st.Name, st.Email, st.AdmittedAt, st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return student.Student{}, trapConflictErr(err, "inserting student")
	}
	return st, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, scope tenant.Scope, id string, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}

	q := new(scopedQuery).where("id = ?", id).confine(scope, "school_id").confineBranch(scope, "branch_id")
	query, args := q.render("SELECT "+studentCols+" FROM student", "LIMIT 1")

	students, err := repo.query(ctx, getExec(repo.exec, exec), query, args)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "finding student")
	}
	if len(students) == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return students[0], nil
}

func (repo studentRepository) GetStudentByAdmissionNo(ctx context.Context, scope tenant.Scope, admNo string, exec ...core.DBExecutor) (student.Student, error) {
	q := new(scopedQuery).where("admission_no = ?", admNo).confine(scope, "school_id").confineBranch(scope, "branch_id")
	query, args := q.render("SELECT "+studentCols+" FROM student", "LIMIT 1")

	students, err := repo.query(ctx, getExec(repo.exec, exec), query, args)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "finding student by admission number")
	}
	if len(students) == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return students[0], nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, scope tenant.Scope, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	q := new(scopedQuery).confine(scope, "school_id").confineBranch(scope, "branch_id")

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q.where("(name ILIKE ? OR email ILIKE ? OR admission_no ILIKE ?)", val, val, val)
		}
		if filter.AcademicYear != 0 {
			q.where("academic_year = ?", filter.AcademicYear)
		}
		if filter.BranchCode != "" {
			q.where("branch_id IN (SELECT id FROM branch WHERE code = ?)", filter.BranchCode)
		}
		if !filter.AdmittedFrom.IsZero() {
			q.where("admitted_at >= ?", filter.AdmittedFrom.UTC())
		}
		if !filter.AdmittedTo.IsZero() {
			q.where("admitted_at <= ?", filter.AdmittedTo.UTC())
		}
	}

	suffix := orderBy(ordering)
	if suffix == "" {
		suffix = "ORDER BY admitted_at DESC"
	}
	query, args := q.render("SELECT "+studentCols+" FROM student", suffix)

	students, err := repo.query(ctx, getExec(repo.exec, exec), query, args)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}

func (repo studentRepository) AdmissionNumbers(ctx context.Context, scope tenant.Scope, exec ...core.DBExecutor) ([]string, error) {
	q := new(scopedQuery).confine(scope, "school_id").confineBranch(scope, "branch_id")
	query, args := q.render("SELECT admission_no FROM student", "")

	rows, err := getExec(repo.exec, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying admission numbers")
	}
	defer func() { _ = rows.Close() }()

	var numbers []string
	for rows.Next() {
		var admNo string
		if err = rows.Scan(&admNo); err != nil {
			return nil, errors.Wrap(err, "scanning admission number")
		}
		numbers = append(numbers, admNo)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying admission numbers")
	}
	return numbers, nil
}
