package student

import (
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/school"
)

// NewServiceMock returns a Service whose email side effects run synchronously.
func NewServiceMock(
	db core.DB,
	repo Repository,
	schools *school.Service,
	gen *admission.Generator,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	svc := NewService(db, repo, schools, gen, mailSvc, logger)
	svc.notify = svc.sendConfirmationMail
	return svc
}
