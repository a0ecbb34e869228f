package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/tenant"
	"github.com/trezcool/academia/core/user"
)

// addOperator creates a platform operator account, or refreshes the roles and
// password of an existing one. Operators are never bound to a school.
func (cli *commandLine) addOperator(uname, email, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, tenant.SystemScope, user.GetFilter{UsernameOrEmail: uname})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			Name:      uname,
			Username:  uname,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}
		usr.Roles = user.OperatorRoles
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		isActive := true
		usr.IsActive = &isActive
		_, err = cli.usrRepo.CreateUser(ctx, tenant.SystemScope, usr)
		return err
	}

	usr.Roles = user.OperatorRoles
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	isActive := true
	_, err = cli.usrRepo.UpdateUser(ctx, tenant.SystemScope, usr, &isActive)
	return err
}
