package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/tenant"
)

func TestStudentRepository_CreateStudent_stampsScopeSchool(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewStudentRepository(db)

	now := time.Now().UTC()
	st := student.Student{
		SchoolID:     "some-other-school", // must not survive the insert
		AdmissionNo:  "ADM-2025-001",
		AcademicYear: 2025,
		Name:         "Jane Doe",
		AdmittedAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student")).
		WithArgs(sqlmock.AnyArg(), testScope.SchoolID, null.String{}, st.AdmissionNo, st.AcademicYear,
			st.Name, st.Email, st.AdmittedAt, st.CreatedAt, st.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.CreateStudent(context.Background(), testScope, st)
	if err != nil {
		t.Fatalf("CreateStudent() error = %v", err)
	}
	if created.SchoolID != testScope.SchoolID {
		t.Errorf("CreateStudent() SchoolID = %q; want scope's %q", created.SchoolID, testScope.SchoolID)
	}
	if created.ID == "" {
		t.Error("CreateStudent() did not assign an ID")
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestStudentRepository_GetStudentByAdmissionNo(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewStudentRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	cols := []string{"id", "school_id", "branch_id", "admission_no", "academic_year", "name", "email", "admitted_at", "created_at", "updated_at"}

	t.Run("found within scope", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT "+studentCols+" FROM student WHERE admission_no = $1 AND school_id = $2")).
			WithArgs("ADM-2025-001", testScope.SchoolID).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("st-1", testScope.SchoolID, nil, "ADM-2025-001", 2025, "Jane Doe", "", now, now, now))

		st, err := repo.GetStudentByAdmissionNo(ctx, testScope, "ADM-2025-001")
		if err != nil {
			t.Fatalf("GetStudentByAdmissionNo() error = %v", err)
		}
		if st.AdmissionNo != "ADM-2025-001" || st.AcademicYear != 2025 {
			t.Errorf("GetStudentByAdmissionNo() = %+v", st)
		}
	})

	t.Run("other tenant's number is invisible", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT "+studentCols+" FROM student WHERE admission_no = $1 AND school_id = $2")).
			WithArgs("ADM-2025-009", testScope.SchoolID).
			WillReturnRows(sqlmock.NewRows(cols))

		if _, err := repo.GetStudentByAdmissionNo(ctx, testScope, "ADM-2025-009"); err != student.ErrNotFound {
			t.Errorf("GetStudentByAdmissionNo() error = %v; want ErrNotFound", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestStudentRepository_AdmissionNumbers(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT admission_no FROM student WHERE school_id = $1")).
		WithArgs(testScope.SchoolID).
		WillReturnRows(sqlmock.NewRows([]string{"admission_no"}).
			AddRow("ADM-2025-001").
			AddRow("ADM-2025-002"))

	numbers, err := repo.AdmissionNumbers(context.Background(), testScope)
	if err != nil {
		t.Fatalf("AdmissionNumbers() error = %v", err)
	}
	if len(numbers) != 2 || numbers[0] != "ADM-2025-001" {
		t.Errorf("AdmissionNumbers() = %v", numbers)
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestStudentRepository_branchScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewStudentRepository(db)
	ctx := context.Background()

	branchScope := tenant.Scope{
		SchoolID: testScope.SchoolID,
		BranchID: null.StringFrom("5f7f34c2-18a1-4b4a-9e7a-0d3f3d1f3a10"),
	}
	cols := []string{"id", "school_id", "branch_id", "admission_no", "academic_year", "name", "email", "admitted_at", "created_at", "updated_at"}

	t.Run("reads carry the branch predicate", func(t *testing.T) {
		// a student of a sibling branch must stay invisible
		id := "9adf1dd4-63fa-4f7b-857c-86f24ae92d2e"
		mock.ExpectQuery(regexp.QuoteMeta("SELECT "+studentCols+" FROM student WHERE id = $1 AND school_id = $2 AND branch_id = $3 LIMIT 1")).
			WithArgs(id, branchScope.SchoolID, branchScope.BranchID.String).
			WillReturnRows(sqlmock.NewRows(cols))

		if _, err := repo.GetStudent(ctx, branchScope, id); err != student.ErrNotFound {
			t.Errorf("GetStudent() error = %v; want ErrNotFound", err)
		}
	})

	t.Run("listing carries the branch predicate", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT "+studentCols+" FROM student WHERE school_id = $1 AND branch_id = $2 ORDER BY admitted_at DESC")).
			WithArgs(branchScope.SchoolID, branchScope.BranchID.String).
			WillReturnRows(sqlmock.NewRows(cols))

		if _, err := repo.QueryStudents(ctx, branchScope, nil, nil); err != nil {
			t.Errorf("QueryStudents() error = %v", err)
		}
	})

	t.Run("inserts stamp the scope's branch", func(t *testing.T) {
		now := time.Now().UTC()
		st := student.Student{
			BranchID:     null.StringFrom("some-other-branch"), // must not survive the insert
			AdmissionNo:  "KB-ADM-2025-001",
			AcademicYear: 2025,
			Name:         "Grace Wanjiru",
			AdmittedAt:   now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student")).
			WithArgs(sqlmock.AnyArg(), branchScope.SchoolID, branchScope.BranchID, st.AdmissionNo, st.AcademicYear,
				st.Name, st.Email, st.AdmittedAt, st.CreatedAt, st.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		created, err := repo.CreateStudent(ctx, branchScope, st)
		if err != nil {
			t.Fatalf("CreateStudent() error = %v", err)
		}
		if created.BranchID != branchScope.BranchID {
			t.Errorf("CreateStudent() BranchID = %v; want scope's %v", created.BranchID, branchScope.BranchID)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestStudentRepository_GetStudent_rejectsMalformedID(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewStudentRepository(db)

	if _, err := repo.GetStudent(context.Background(), tenant.Scope{SchoolID: "sch"}, "not-a-uuid"); err != student.ErrNotFound {
		t.Errorf("GetStudent() error = %v; want ErrNotFound", err)
	}
}
