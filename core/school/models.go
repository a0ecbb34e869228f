package school

import (
	"context"
	"strings"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
)

// defaultBranchSeparator is used when a school is provisioned without one.
const defaultBranchSeparator = "-"

// School is a tenant: the unit of data isolation. AdmissionFormat and
// BranchSeparator are fixed at provisioning; changing either would break
// parsing of every admission number already issued.
type School struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	AdmissionFormat admission.Format `json:"admission_format"`
	BranchSeparator string           `json:"branch_separator"`
	CreatedAt       time.Time        `json:"created_at"` // UTC
	UpdatedAt       time.Time        `json:"updated_at"` // UTC
}

// Branch belongs to a school; its code is embedded verbatim in admission
// numbers and is therefore immutable. Codes are unique per school only.
type Branch struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewSchool contains information needed to provision a new School.
type NewSchool struct {
	Name            string           `json:"name" validate:"required"`
	AdmissionFormat admission.Format `json:"admission_format" validate:"required,admission_format"`
	BranchSeparator string           `json:"branch_separator" validate:"omitempty,branch_separator"`
}

func (ns *NewSchool) Validate(ctx context.Context, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	if ns.BranchSeparator == "" {
		ns.BranchSeparator = defaultBranchSeparator
	}

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkNameUniqueness(ctx, ns.Name)
}

// NewBranch contains information needed to register a branch under a school.
type NewBranch struct {
	Code string `json:"code" validate:"required,max=12,alphanum"`
	Name string `json:"name" validate:"required"`
}

func (nb *NewBranch) Validate(sch School) error {
	nb.Code = core.NormalizeCode(nb.Code)
	nb.Name = core.CleanString(nb.Name)

	if err := core.Validate.Struct(nb); err != nil {
		return err
	}
	// alphanum already excludes the separator; keep the invariant explicit
	if strings.Contains(nb.Code, sch.BranchSeparator) {
		return core.NewValidationError(nil,
			core.FieldError{Field: "code", Error: "code cannot contain the school's branch separator"})
	}
	return nil
}
