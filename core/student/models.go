package student

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

// Student is an admitted learner. AdmissionNo is issued exactly once at
// admission and never reused, even across academic years; SchoolID confines
// the record to its tenant.
type Student struct {
	ID           string      `json:"id"`
	SchoolID     string      `json:"school_id"`
	BranchID     null.String `json:"branch_id"`
	AdmissionNo  string      `json:"admission_no"`
	AcademicYear int         `json:"academic_year"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	AdmittedAt   time.Time   `json:"admitted_at"` // UTC
	CreatedAt    time.Time   `json:"created_at"`  // UTC
	UpdatedAt    time.Time   `json:"updated_at"`  // UTC
}

// NewStudent contains information needed to admit a new Student.
// AcademicYear defaults to the current year; BranchCode is required only when
// the school's admission format embeds a branch.
type NewStudent struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"omitempty,email"`
	BranchCode   string `json:"branch_code" validate:"omitempty,max=12,alphanum"`
	AcademicYear int    `json:"academic_year" validate:"omitempty,min=1000,max=9999"`
}

func (ns *NewStudent) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.BranchCode = core.NormalizeCode(ns.BranchCode)
	return core.Validate.Struct(ns)
}

type QueryFilter struct {
	Search       string    `query:"search"`
	AcademicYear int       `query:"academic_year"`
	BranchCode   string    `query:"branch_code"`
	AdmittedFrom time.Time `query:"admitted_from"`
	AdmittedTo   time.Time `query:"admitted_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.AcademicYear == 0 && qf.BranchCode == "" &&
		qf.AdmittedFrom.IsZero() && qf.AdmittedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.BranchCode = core.NormalizeCode(qf.BranchCode)
}
