package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// GetEmployeesParams defines parameters for GetEmployees.
type GetEmployeesParams struct {
	Page  *int `form:"page,omitempty" json:"page,omitempty"`
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// GetAttendanceParams defines parameters for attendance history routes.
type GetAttendanceParams struct {
	StartDate *string `form:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate   *string `form:"endDate,omitempty" json:"endDate,omitempty"`
	Page      *int    `form:"page,omitempty" json:"page,omitempty"`
	Limit     *int    `form:"limit,omitempty" json:"limit,omitempty"`
}

// ServerInterface represents all gateway handlers.
type ServerInterface interface {
	// (POST /session/login)
	SessionLogin(w http.ResponseWriter, r *http.Request)
	// (POST /session/logout)
	SessionLogout(w http.ResponseWriter, r *http.Request)
	// (GET /session)
	GetSession(w http.ResponseWriter, r *http.Request)
	// (GET /attendance/today)
	GetTodayAttendance(w http.ResponseWriter, r *http.Request)
	// (POST /attendance/clock-in)
	ClockIn(w http.ResponseWriter, r *http.Request)
	// (POST /attendance/clock-out)
	ClockOut(w http.ResponseWriter, r *http.Request)
	// (GET /attendance/history)
	GetAttendanceHistory(w http.ResponseWriter, r *http.Request, params GetAttendanceParams)
	// (GET /employees)
	GetEmployees(w http.ResponseWriter, r *http.Request, params GetEmployeesParams)
	// (POST /employees)
	CreateEmployee(w http.ResponseWriter, r *http.Request)
	// (GET /employees/{id})
	GetEmployeeByID(w http.ResponseWriter, r *http.Request, id string)
	// (PATCH /employees/{id})
	UpdateEmployee(w http.ResponseWriter, r *http.Request, id string)
	// (DELETE /employees/{id})
	DeleteEmployee(w http.ResponseWriter, r *http.Request, id string)
	// (GET /employees/{id}/attendances)
	GetEmployeeAttendances(w http.ResponseWriter, r *http.Request, id string, params GetAttendanceParams)
}

// ServerInterfaceWrapper binds request parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError is returned when a parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

func (siw *ServerInterfaceWrapper) SessionLogin(w http.ResponseWriter, r *http.Request) {
	siw.Handler.SessionLogin(w, r)
}

func (siw *ServerInterfaceWrapper) SessionLogout(w http.ResponseWriter, r *http.Request) {
	siw.Handler.SessionLogout(w, r)
}

func (siw *ServerInterfaceWrapper) GetSession(w http.ResponseWriter, r *http.Request) {
	siw.Handler.GetSession(w, r)
}

func (siw *ServerInterfaceWrapper) GetTodayAttendance(w http.ResponseWriter, r *http.Request) {
	siw.Handler.GetTodayAttendance(w, r)
}

func (siw *ServerInterfaceWrapper) ClockIn(w http.ResponseWriter, r *http.Request) {
	siw.Handler.ClockIn(w, r)
}

func (siw *ServerInterfaceWrapper) ClockOut(w http.ResponseWriter, r *http.Request) {
	siw.Handler.ClockOut(w, r)
}

func (siw *ServerInterfaceWrapper) GetAttendanceHistory(w http.ResponseWriter, r *http.Request) {
	params, err := bindAttendanceParams(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.GetAttendanceHistory(w, r, params)
}

func (siw *ServerInterfaceWrapper) GetEmployees(w http.ResponseWriter, r *http.Request) {
	var params GetEmployeesParams

	if err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &params.Page); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "page", Err: err})
		return
	}

	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	siw.Handler.GetEmployees(w, r, params)
}

func (siw *ServerInterfaceWrapper) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	siw.Handler.CreateEmployee(w, r)
}

func (siw *ServerInterfaceWrapper) GetEmployeeByID(w http.ResponseWriter, r *http.Request) {
	id, err := bindID(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.GetEmployeeByID(w, r, id)
}

func (siw *ServerInterfaceWrapper) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := bindID(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.UpdateEmployee(w, r, id)
}

func (siw *ServerInterfaceWrapper) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := bindID(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.DeleteEmployee(w, r, id)
}

func (siw *ServerInterfaceWrapper) GetEmployeeAttendances(w http.ResponseWriter, r *http.Request) {
	id, err := bindID(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	params, err := bindAttendanceParams(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.GetEmployeeAttendances(w, r, id, params)
}

func bindID(r *http.Request) (string, error) {
	var id string

	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", &InvalidParamFormatError{ParamName: "id", Err: err}
	}

	return id, nil
}

func bindAttendanceParams(r *http.Request) (GetAttendanceParams, error) {
	var params GetAttendanceParams

	bind := []struct {
		name string
		dest any
	}{
		{"startDate", &params.StartDate},
		{"endDate", &params.EndDate},
		{"page", &params.Page},
		{"limit", &params.Limit},
	}

	for _, b := range bind {
		if err := runtime.BindQueryParameter("form", true, false, b.name, r.URL.Query(), b.dest); err != nil {
			return params, &InvalidParamFormatError{ParamName: b.name, Err: err}
		}
	}

	return params, nil
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseRouter       chi.Router
	Middlewares      map[string][]func(http.Handler) http.Handler
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux mounts si on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions mounts si with route group middlewares. The
// "attendance" and "employees" groups receive their role gates here.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}

	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post("/session/login", wrapper.SessionLogin)
		r.Post("/session/logout", wrapper.SessionLogout)
		r.Get("/session", wrapper.GetSession)
	})

	r.Group(func(r chi.Router) {
		r.Use(options.Middlewares["attendance"]...)
		r.Get("/attendance/today", wrapper.GetTodayAttendance)
		r.Post("/attendance/clock-in", wrapper.ClockIn)
		r.Post("/attendance/clock-out", wrapper.ClockOut)
		r.Get("/attendance/history", wrapper.GetAttendanceHistory)
	})

	r.Group(func(r chi.Router) {
		r.Use(options.Middlewares["employees"]...)
		r.Get("/employees", wrapper.GetEmployees)
		r.Post("/employees", wrapper.CreateEmployee)
		r.Get("/employees/{id}", wrapper.GetEmployeeByID)
		r.Patch("/employees/{id}", wrapper.UpdateEmployee)
		r.Delete("/employees/{id}", wrapper.DeleteEmployee)
		r.Get("/employees/{id}/attendances", wrapper.GetEmployeeAttendances)
	})

	return r
}
