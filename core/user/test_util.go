package user

import (
	"context"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/tenant"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose email side effects run synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			logger:  logger,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, tenant.SystemScope, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
