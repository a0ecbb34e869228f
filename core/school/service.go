package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/tenant"
)

var (
	// errors
	ErrNotFound       = errors.New("school not found")
	ErrNameExists     = errors.New("a school with this name already exists")
	ErrBranchNotFound = errors.New("branch not found")
	ErrCodeExists     = errors.New("a branch with this code already exists")
)

type (
	Repository interface {
		CheckSchoolNameUniqueness(ctx context.Context, name string, exec ...core.DBExecutor) error
		CreateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
		// GetSchool confines the lookup to the scope's school unless the scope is unbound.
		GetSchool(ctx context.Context, scope tenant.Scope, id string, exec ...core.DBExecutor) (School, error)
		QuerySchools(ctx context.Context, scope tenant.Scope, exec ...core.DBExecutor) ([]School, error)

		CheckBranchCodeUniqueness(ctx context.Context, scope tenant.Scope, code string, exec ...core.DBExecutor) error
		CreateBranch(ctx context.Context, scope tenant.Scope, br Branch, exec ...core.DBExecutor) (Branch, error)
		QueryBranches(ctx context.Context, scope tenant.Scope, exec ...core.DBExecutor) ([]Branch, error)
		GetBranchByCode(ctx context.Context, scope tenant.Scope, code string, exec ...core.DBExecutor) (Branch, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ admission.SchoolFormats = (*Service)(nil) // interface compliance check

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) checkNameUniqueness(ctx context.Context, name string) error {
	if err := svc.repo.CheckSchoolNameUniqueness(ctx, name); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Create provisions a new school. Callers must have independently verified
// the platform-operator role; this is the one flow that runs unscoped.
func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	sch := School{
		Name:            ns.Name,
		AdmissionFormat: ns.AdmissionFormat,
		BranchSeparator: ns.BranchSeparator,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateSchool(ctx, sch)
}

// Get returns the scope's own school.
func (svc *Service) Get(ctx context.Context, scope tenant.Scope) (School, error) {
	if err := scope.RequireSchool(); err != nil {
		return School{}, err
	}
	return svc.repo.GetSchool(ctx, scope, scope.SchoolID)
}

func (svc *Service) GetByID(ctx context.Context, scope tenant.Scope, id string) (School, error) {
	return svc.repo.GetSchool(ctx, scope, id)
}

func (svc *Service) Query(ctx context.Context, scope tenant.Scope) ([]School, error) {
	return svc.repo.QuerySchools(ctx, scope)
}

// AdmissionFormat yields the scoped school's admission number configuration.
func (svc *Service) AdmissionFormat(ctx context.Context, scope tenant.Scope, exec ...core.DBExecutor) (admission.Format, string, error) {
	if err := scope.RequireSchool(); err != nil {
		return "", "", err
	}
	sch, err := svc.repo.GetSchool(ctx, scope, scope.SchoolID, exec...)
	if err != nil {
		return "", "", err
	}
	return sch.AdmissionFormat, sch.BranchSeparator, nil
}

func (svc *Service) CreateBranch(ctx context.Context, scope tenant.Scope, nb NewBranch) (Branch, error) {
	if err := scope.RequireSchool(); err != nil {
		return Branch{}, err
	}

	sch, err := svc.repo.GetSchool(ctx, scope, scope.SchoolID)
	if err != nil {
		return Branch{}, errors.Wrap(err, "finding school")
	}
	if err = nb.Validate(sch); err != nil {
		return Branch{}, err
	}
	if err = svc.repo.CheckBranchCodeUniqueness(ctx, scope, nb.Code); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return Branch{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return Branch{}, err
	}

	br := Branch{
		SchoolID:  sch.ID,
		Code:      nb.Code,
		Name:      nb.Name,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateBranch(ctx, scope, br)
}

func (svc *Service) QueryBranches(ctx context.Context, scope tenant.Scope) ([]Branch, error) {
	if err := scope.RequireSchool(); err != nil {
		return nil, err
	}
	return svc.repo.QueryBranches(ctx, scope)
}

func (svc *Service) GetBranchByCode(ctx context.Context, scope tenant.Scope, code string) (Branch, error) {
	if err := scope.RequireSchool(); err != nil {
		return Branch{}, err
	}
	return svc.repo.GetBranchByCode(ctx, scope, core.NormalizeCode(code))
}
