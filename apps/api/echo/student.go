package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/tenant"
)

type studentApi struct {
	logger core.Logger
	svc    *student.Service
	gen    *admission.Generator
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, logger core.Logger, svc *student.Service, gen *admission.Generator) {
	api := studentApi{
		logger: logger,
		svc:    svc,
		gen:    gen,
	}

	// everything here is per-school; unbound operators must declare the school
	// in the path
	sg := g.Group("/schools/:schoolId", jwt, tenantScopeMiddleware(logger), requireSchoolMiddleware())

	sg.POST("/students", api.admit, registrarMiddleware())
	sg.GET("/students", api.query)
	sg.GET("/students/:id", api.retrieve)
	sg.GET("/students/by-admission-no/:admissionNo", api.retrieveByAdmissionNo)
	sg.POST("/admission-numbers/decode", api.decodeAdmissionNo)

	sg.GET("/admission-sequence", api.currentSequence)
	sg.POST("/admission-sequence/reset", api.resetSequence, adminMiddleware())
	sg.POST("/admission-sequence/repair", api.repairSequence, adminMiddleware())
}

// Handlers

func (api *studentApi) admit(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}

	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	st, err := api.svc.Admit(ctx.Request().Context(), scope, data)
	if err != nil {
		if errors.Cause(err) == tenant.ErrBranchMismatch {
			return errBranchMismatch
		}
		return errors.Wrap(err, "admitting student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	students, err := api.svc.Query(ctx.Request().Context(), scope, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	st, err := api.svc.GetByID(ctx.Request().Context(), scope, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding student by ID")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) retrieveByAdmissionNo(ctx echo.Context) error {
	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	st, err := api.svc.GetByAdmissionNo(ctx.Request().Context(), scope, ctx.Param("admissionNo"))
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding student by admission number")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) decodeAdmissionNo(ctx echo.Context) error {
	var data DecodeAdmissionNoRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DecodeAdmissionNoRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	admNo, err := api.svc.DecodeAdmissionNo(ctx.Request().Context(), scope, data.AdmissionNo)
	if err != nil {
		return errors.Wrap(err, "decoding admission number")
	}
	return ctx.JSON(http.StatusOK, admNo)
}

func (api *studentApi) currentSequence(ctx echo.Context) error {
	year, err := bindYearParam(ctx)
	if err != nil {
		return err
	}

	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	cur, err := api.gen.Current(ctx.Request().Context(), scope, year)
	if err != nil {
		return errors.Wrap(err, "reading admission sequence")
	}
	if year == 0 {
		year = admission.CurrentAcademicYear()
	}
	return ctx.JSON(http.StatusOK, SequenceResponse{AcademicYear: year, CurrentValue: cur})
}

func (api *studentApi) resetSequence(ctx echo.Context) error {
	var data ResetSequenceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetSequenceRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	if err = api.gen.Reset(ctx.Request().Context(), scope, data.AcademicYear, data.Value); err != nil {
		return errors.Wrap(err, "resetting admission sequence")
	}

	year := data.AcademicYear
	if year == 0 {
		year = admission.CurrentAcademicYear()
	}
	api.logger.Info("admission sequence reset",
		map[string]interface{}{"schoolId": scope.SchoolID, "year": year, "value": data.Value})
	return ctx.JSON(http.StatusOK, SequenceResponse{AcademicYear: year, CurrentValue: data.Value})
}

func (api *studentApi) repairSequence(ctx echo.Context) error {
	scope, err := getContextScope(ctx)
	if err != nil {
		return err
	}
	raised, err := api.gen.Repair(ctx.Request().Context(), scope)
	if err != nil {
		return errors.Wrap(err, "repairing admission sequences")
	}
	if raised == nil {
		raised = map[int]int{}
	}
	return ctx.JSON(http.StatusOK, RepairSequenceResponse{Raised: raised})
}

func bindYearParam(ctx echo.Context) (int, error) {
	val := ctx.QueryParam("academic_year")
	if val == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(val)
	if err != nil || year < 1000 || year > 9999 {
		return 0, core.NewValidationError(nil,
			core.FieldError{Field: "academic_year", Error: "must be a 4-digit year"})
	}
	return year, nil
}

type (
	DecodeAdmissionNoRequest struct {
		AdmissionNo string `json:"admission_no" validate:"required"`
	}

	ResetSequenceRequest struct {
		AcademicYear int `json:"academic_year" validate:"omitempty,min=1000,max=9999"`
		Value        int `json:"value" validate:"min=0"`
	}

	SequenceResponse struct {
		AcademicYear int `json:"academic_year"`
		CurrentValue int `json:"current_value"`
	}

	RepairSequenceResponse struct {
		Raised map[int]int `json:"raised"`
	}
)

func (dr *DecodeAdmissionNoRequest) Validate() error {
	dr.AdmissionNo = core.CleanString(dr.AdmissionNo)
	return core.Validate.Struct(dr)
}

func (rr *ResetSequenceRequest) Validate() error { return core.Validate.Struct(rr) }
