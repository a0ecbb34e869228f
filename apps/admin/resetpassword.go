package main

import (
	"context"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/tenant"
	"github.com/trezcool/academia/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, tenant.SystemScope, user.GetFilter{UsernameOrEmail: uname})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, tenant.SystemScope, usr, nil)
	return err
}
