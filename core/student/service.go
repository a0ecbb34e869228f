package student

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/school"
	"github.com/trezcool/academia/core/tenant"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")
)

// maxAdmitAttempts bounds the whole-transaction retry when the sequence
// increment hits a transient conflict inside the admission transaction.
const maxAdmitAttempts = 3

type (
	// Repository persists students. AdmissionNumbers (admission.IssuedNumbers)
	// feeds counter repair.
	Repository interface {
		admission.IssuedNumbers

		CreateStudent(ctx context.Context, scope tenant.Scope, st Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, scope tenant.Scope, id string, exec ...core.DBExecutor) (Student, error)
		GetStudentByAdmissionNo(ctx context.Context, scope tenant.Scope, admNo string, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, scope tenant.Scope, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
	}

	// AdmissionNo are the decoded components of an issued admission number.
	AdmissionNo struct {
		Number       string `json:"number"`
		BranchCode   string `json:"branch_code,omitempty"`
		AcademicYear int    `json:"academic_year"`
		Sequence     int    `json:"sequence"`
	}

	Service struct {
		db      core.DB
		repo    Repository
		schools *school.Service
		gen     *admission.Generator
		mailSvc core.EmailService
		logger  core.Logger
		notify  func(Student) // confirmation mail dispatch; synchronous in tests
	}
)

func NewService(
	db core.DB,
	repo Repository,
	schools *school.Service,
	gen *admission.Generator,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	svc := &Service{
		db:      db,
		repo:    repo,
		schools: schools,
		gen:     gen,
		mailSvc: mailSvc,
		logger:  logger,
	}
	svc.notify = func(st Student) { go svc.sendConfirmationMail(st) }
	return svc
}

// Admit issues the next admission number for the scoped school and records the
// student, atomically: the counter increment and the student insert share one
// transaction, so a failed insert never burns a number. Transient sequence
// conflicts retry the whole transaction a bounded number of times.
func (svc *Service) Admit(ctx context.Context, scope tenant.Scope, ns NewStudent) (Student, error) {
	if err := scope.RequireSchool(); err != nil {
		return Student{}, err
	}
	if err := ns.Validate(); err != nil {
		return Student{}, err
	}

	sch, err := svc.schools.Get(ctx, scope)
	if err != nil {
		return Student{}, errors.Wrap(err, "finding school")
	}

	year := ns.AcademicYear
	if year == 0 {
		year = admission.CurrentAcademicYear()
	}

	var (
		branchCode string
		branchID   null.String
	)
	if sch.AdmissionFormat.HasBranch() {
		if ns.BranchCode == "" {
			return Student{}, core.NewValidationError(admission.ErrBranchRequired,
				core.FieldError{Field: "branch_code", Error: admission.ErrBranchRequired.Error()})
		}
		br, err := svc.schools.GetBranchByCode(ctx, scope, ns.BranchCode)
		if err != nil {
			if errors.Cause(err) == school.ErrBranchNotFound {
				return Student{}, core.NewValidationError(err,
					core.FieldError{Field: "branch_code", Error: err.Error()})
			}
			return Student{}, errors.Wrap(err, "finding branch")
		}
		// a branch-bound caller may only admit into its own branch
		if scope.BranchID.Valid && br.ID != scope.BranchID.String {
			return Student{}, tenant.ErrBranchMismatch
		}
		branchCode = br.Code
		branchID = null.StringFrom(br.ID)
	}

	var st Student
	for attempt := 1; ; attempt++ {
		st, err = svc.admitTx(ctx, scope, sch, ns, branchCode, branchID, year)
		if err == nil {
			break
		}
		if errors.Cause(err) != admission.ErrSequenceConflict || attempt >= maxAdmitAttempts {
			return Student{}, err
		}
		time.Sleep(time.Duration(attempt) * 10 * time.Millisecond)
	}

	svc.logger.Info("student admitted", scope,
		map[string]interface{}{"admissionNo": st.AdmissionNo})
	svc.notify(st)
	return st, nil
}

func (svc *Service) admitTx(
	ctx context.Context,
	scope tenant.Scope,
	sch school.School,
	ns NewStudent,
	branchCode string,
	branchID null.String,
	year int,
) (Student, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return Student{}, errors.Wrap(err, "beginning admission transaction")
	}
	defer func() { _ = tx.Rollback() }()

	seq, err := svc.gen.Next(ctx, scope, year, tx)
	if err != nil {
		return Student{}, err
	}
	admNo, err := admission.Render(sch.AdmissionFormat, sch.BranchSeparator, branchCode, year, seq)
	if err != nil {
		return Student{}, errors.Wrap(err, "rendering admission number")
	}

	now := time.Now().UTC()
	st := Student{
		SchoolID:     sch.ID,
		BranchID:     branchID,
		AdmissionNo:  admNo,
		AcademicYear: year,
		Name:         ns.Name,
		Email:        ns.Email,
		AdmittedAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if st, err = svc.repo.CreateStudent(ctx, scope, st, tx); err != nil {
		return Student{}, err
	}

	if err = tx.Commit(); err != nil {
		return Student{}, errors.Wrap(err, "committing admission transaction")
	}
	return st, nil
}

func (svc *Service) GetByID(ctx context.Context, scope tenant.Scope, id string) (Student, error) {
	if err := scope.RequireSchool(); err != nil {
		return Student{}, err
	}
	return svc.repo.GetStudent(ctx, scope, id)
}

func (svc *Service) GetByAdmissionNo(ctx context.Context, scope tenant.Scope, admNo string) (Student, error) {
	if err := scope.RequireSchool(); err != nil {
		return Student{}, err
	}
	return svc.repo.GetStudentByAdmissionNo(ctx, scope, core.CleanString(admNo))
}

func (svc *Service) Query(ctx context.Context, scope tenant.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if err := scope.RequireSchool(); err != nil {
		return nil, err
	}
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryStudents(ctx, scope, filter, ordering)
}

// DecodeAdmissionNo splits an admission number into its components per the
// scoped school's configured format.
func (svc *Service) DecodeAdmissionNo(ctx context.Context, scope tenant.Scope, admNo string) (AdmissionNo, error) {
	if err := scope.RequireSchool(); err != nil {
		return AdmissionNo{}, err
	}
	format, sep, err := svc.schools.AdmissionFormat(ctx, scope)
	if err != nil {
		return AdmissionNo{}, errors.Wrap(err, "loading school format")
	}

	admNo = core.CleanString(admNo)
	branch, year, seq, err := admission.Parse(format, sep, admNo)
	if err != nil {
		return AdmissionNo{}, core.NewValidationError(err,
			core.FieldError{Field: "admission_no", Error: err.Error()})
	}
	return AdmissionNo{
		Number:       admNo,
		BranchCode:   branch,
		AcademicYear: year,
		Sequence:     seq,
	}, nil
}

func (svc *Service) sendConfirmationMail(st Student) {
	if st.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: st.Name, Address: st.Email}},
		Subject:      "Admission Confirmation",
		TemplateName: "admission-confirmation",
		TemplateData: struct {
			Name         string
			AdmissionNo  string
			AcademicYear int
		}{st.Name, st.AdmissionNo, st.AcademicYear},
	})
}
