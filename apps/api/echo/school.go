package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/school"
)

type schoolApi struct {
	logger core.Logger
	svc    *school.Service
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, logger core.Logger, svc *school.Service) {
	api := schoolApi{
		logger: logger,
		svc:    svc,
	}

	sg := g.Group("/schools", jwt, tenantScopeMiddleware(logger))
	sg.POST("", api.create, operatorMiddleware())
	sg.GET("", api.query)

	// school-scoped subtree; the scope middleware has already matched the
	// caller's claims against :schoolId by the time these run
	dg := sg.Group("/:schoolId", requireSchoolMiddleware())
	dg.GET("", api.retrieve)
	dg.POST("/branches", api.createBranch, adminMiddleware())
	dg.GET("/branches", api.queryBranches)
}

// Handlers

func (api *schoolApi) create(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}

	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.svc); err != nil {
		return err
	}

	sch, err := api.svc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "provisioning school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) query(ctx echo.Context) error {
	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}

	schools, err := api.svc.Query(ctx.Request().Context(), scope)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}

	sch, err := api.svc.Get(ctx.Request().Context(), scope)
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) createBranch(ctx echo.Context) error {
	var data school.NewBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBranch")
	}

	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}

	br, err := api.svc.CreateBranch(ctx.Request().Context(), scope, data)
	if err != nil {
		return errors.Wrap(err, "registering branch")
	}
	return ctx.JSON(http.StatusCreated, br)
}

func (api *schoolApi) queryBranches(ctx echo.Context) error {
	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}

	branches, err := api.svc.QueryBranches(ctx.Request().Context(), scope)
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	if branches == nil {
		branches = []school.Branch{}
	}
	return ctx.JSON(http.StatusOK, branches)
}
