// Package logsvc implements core.Logger on rollbar, mirroring everything to a
// standard logger for the console.
package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/tenant"
	"github.com/trezcool/academia/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare translates our log arguments into rollbar's.
//
// Two argument kinds get special treatment: a user.User pins the acting
// account on the rollbar item, and a tenant.Scope becomes school/branch
// custom fields so items can be filtered per tenant. Everything else is
// forwarded as-is.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch val := arg.(type) {
		case user.User:
			if !usrSet { // only set one User
				rollbar.SetPerson(val.ID, val.Username, val.Email)
				usrSet = true
			}
		case tenant.Scope:
			fields := map[string]interface{}{"school_id": val.SchoolID, "operator": val.Operator}
			if val.BranchID.Valid {
				fields["branch_id"] = val.BranchID.String
			}
			newArgs = append(newArgs, fields)
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) log(rollbarFn func(...interface{}), msg string, args []interface{}) {
	rollbarFn(l.prepare(msg, args)...)
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(rollbar.Debug, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.Info, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.Warning, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.Error, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.Critical, msg, args)
	l.std.Fatal(msg)
}
