package sqlxrepos

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/tenant"
)

var testScope = tenant.Scope{SchoolID: "0c2c3e3f-61fa-4bd5-9e48-fc28a2545b5e"}

func TestSequenceRepository_NextSequenceValue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewSequenceRepository(db)
	ctx := context.Background()

	t.Run("atomic upsert increment", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO admission_sequence")).
			WithArgs(testScope.SchoolID, 2025).
			WillReturnRows(sqlmock.NewRows([]string{"current_value"}).AddRow(3))

		got, err := repo.NextSequenceValue(ctx, testScope, 2025)
		if err != nil {
			t.Fatalf("NextSequenceValue() error = %v", err)
		}
		if got != 3 {
			t.Errorf("NextSequenceValue() = %d; want 3", got)
		}
	})

	t.Run("serialization failure maps to conflict", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO admission_sequence")).
			WithArgs(testScope.SchoolID, 2025).
			WillReturnError(&pq.Error{Code: "40001"})

		_, err := repo.NextSequenceValue(ctx, testScope, 2025)
		if errors.Cause(err) != admission.ErrSequenceConflict {
			t.Errorf("NextSequenceValue() error = %v; want ErrSequenceConflict", err)
		}
	})

	t.Run("deadlock maps to conflict", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO admission_sequence")).
			WithArgs(testScope.SchoolID, 2025).
			WillReturnError(&pq.Error{Code: "40P01"})

		_, err := repo.NextSequenceValue(ctx, testScope, 2025)
		if errors.Cause(err) != admission.ErrSequenceConflict {
			t.Errorf("NextSequenceValue() error = %v; want ErrSequenceConflict", err)
		}
	})

	t.Run("unbound scope is rejected before any query", func(t *testing.T) {
		_, err := repo.NextSequenceValue(ctx, tenant.Scope{Operator: true}, 2025)
		if err != tenant.ErrSchoolRequired {
			t.Errorf("NextSequenceValue() error = %v; want ErrSchoolRequired", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestSequenceRepository_CurrentSequenceValue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewSequenceRepository(db)

	// no counter row yet: COALESCE yields 0, not an error
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(")).
		WithArgs(testScope.SchoolID, 2026).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))

	got, err := repo.CurrentSequenceValue(context.Background(), testScope, 2026)
	if err != nil {
		t.Fatalf("CurrentSequenceValue() error = %v", err)
	}
	if got != 0 {
		t.Errorf("CurrentSequenceValue() = %d; want 0", got)
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestSequenceRepository_SetSequenceValue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := NewSequenceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admission_sequence")).
		WithArgs(testScope.SchoolID, 2025, 41).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetSequenceValue(context.Background(), testScope, 2025, 41); err != nil {
		t.Fatalf("SetSequenceValue() error = %v", err)
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}
