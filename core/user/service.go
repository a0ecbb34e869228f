package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/tenant"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	// Repository persists users. Every method is confined to the given scope
	// by the storage layer; an unbound operator scope passes through
	// unfiltered.
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, scope tenant.Scope, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, scope tenant.Scope, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, scope tenant.Scope, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, scope tenant.Scope, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, scope tenant.Scope, usr User, isActive *bool, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, scope tenant.Scope, ids []string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, scope tenant.Scope, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, scope tenant.Scope, nu NewUser) (User, error)
		Query(ctx context.Context, scope tenant.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, scope tenant.Scope, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, scope tenant.Scope, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, scope tenant.Scope, ids ...string) error
		SetLastLogin(ctx context.Context, usr User) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, scope tenant.Scope, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, scope, uname, email, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create adds a new account bound to the scope's school; under an unbound
// operator scope the account itself is a platform operator.
func (svc *service) Create(ctx context.Context, scope tenant.Scope, nu NewUser) (User, error) {
	now := time.Now().UTC()
	isActive := true
	usr := User{
		BranchID:  nu.BranchID,
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  &isActive,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, scope, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *service) Query(ctx context.Context, scope tenant.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, scope, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, scope tenant.Scope, id string) (User, error) {
	return svc.repo.GetUser(ctx, scope, GetFilter{ID: id})
}

// GetByUsernameOrEmail finds an account for authentication; it runs before a
// request scope exists and is the only unscoped read besides provisioning.
func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, tenant.SystemScope, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, scope tenant.Scope, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		BranchID:  uu.BranchID,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Roles:     uu.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	return svc.repo.UpdateUser(ctx, scope, usr, uu.IsActive)
}

func (svc *service) Delete(ctx context.Context, scope tenant.Scope, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, scope, ids)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	scope := tenant.SystemScope
	return svc.repo.UpdateUser(ctx, scope, usr, nil)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, tenant.SystemScope, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUser(ctx, tenant.SystemScope, GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(ctx, tenant.SystemScope, usr, nil); err != nil {
		return err
	}
	svc.logger.Info(fmt.Sprintf("password reset for user %s", usr.ID))
	return nil
}

func (svc *service) sendWelcomeMail(usr User) {
	if usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + core.Conf.AppName,
		TemplateName: "welcome",
		TemplateData: struct{ Name string }{usr.Name},
	})
}

func (svc *service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct{ UID, Token string }{EncodeUID(usr), makeToken(usr)},
	})
}
