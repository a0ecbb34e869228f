package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/tenant"
)

var (
	contextScopeKey = "scope"

	// legacySchoolHeader was how early clients declared their school. It was
	// spoofable and is no longer consulted; requests still sending it get a
	// log line so the stragglers can be found and upgraded.
	legacySchoolHeader = "X-Academia-School"
)

// tenantScopeMiddleware resolves the request's tenant scope from the session
// claims and the :schoolId path parameter, then pins it into the context.
// A bound caller declaring a different school is rejected outright: this is
// an authorization failure, not bad input, and it fails closed.
func tenantScopeMiddleware(logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			if hdr := ctx.Request().Header.Get(legacySchoolHeader); hdr != "" {
				logger.Warn("ignoring deprecated school header",
					map[string]interface{}{"header": legacySchoolHeader, "user": claims.Subject})
			}

			scope, err := tenant.Resolve(
				claims.SchoolID,
				null.NewString(claims.BranchID, claims.BranchID != ""),
				claims.Roles,
				claims.IsOperator,
				ctx.Param("schoolId"),
			)
			if err != nil {
				if errors.Cause(err) == tenant.ErrSchoolMismatch {
					return errSchoolMismatch
				}
				return errors.Wrap(err, "resolving tenant scope")
			}

			ctx.Set(contextScopeKey, scope)
			return next(ctx)
		}
	}
}

// requireSchoolMiddleware rejects tenant-demanding routes reached under an
// unbound operator scope (no :schoolId declared).
func requireSchoolMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			scope, err := getContextScope(ctx)
			if err != nil {
				return err
			}
			if err = scope.RequireSchool(); err != nil {
				return errSchoolRequired
			}
			return next(ctx)
		}
	}
}

func getContextScope(ctx echo.Context) (tenant.Scope, error) {
	if scope, ok := ctx.Get(contextScopeKey).(tenant.Scope); ok {
		return scope, nil
	}
	return tenant.Scope{}, errUnauthorized
}
