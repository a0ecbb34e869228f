package school

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
)

var (
	admissionFormatTag  = "admission_format"
	admissionFormatText = "invalid admission number format"

	branchSepTag  = "branch_separator"
	branchSepText = "separator must be a single non-alphanumeric character"
)

func init() {
	// register validators
	_ = core.Validate.RegisterValidation(admissionFormatTag, admissionFormatValidation)
	core.RegisterCustomTranslation(admissionFormatTag, admissionFormatText)

	_ = core.Validate.RegisterValidation(branchSepTag, branchSeparatorValidation)
	core.RegisterCustomTranslation(branchSepTag, branchSepText)
}

func admissionFormatValidation(fl validator.FieldLevel) bool {
	return admission.Format(fl.Field().String()).Valid()
}

func branchSeparatorValidation(fl validator.FieldLevel) bool {
	sep := fl.Field().String()
	if len(sep) != 1 {
		return false
	}
	c := sep[0]
	isAlnum := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return !isAlnum
}
