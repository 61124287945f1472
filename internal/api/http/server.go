package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamanr/hr_console/internal/controllers"
	"github.com/adamanr/hr_console/internal/entity"
	"github.com/adamanr/hr_console/internal/schema"
	"github.com/adamanr/hr_console/internal/transport"
)

const (
	dateLayout        = "2006-01-02"
	multipartOverhead = 1 << 20
)

type Server struct {
	deps        *controllers.Dependens
	Controllers *controllers.Controllers
}

func NewServer(deps *controllers.Dependens, ctrls *controllers.Controllers) *Server {
	return &Server{
		deps:        deps,
		Controllers: ctrls,
	}
}

var _ ServerInterface = Server{}

type sessionView struct {
	State string           `json:"state"`
	User  *entity.Identity `json:"user"`
}

func (s Server) session() sessionView {
	user := s.deps.Session.Identity()
	if user != nil {
		user.AccessToken = ""
	}

	return sessionView{State: s.deps.Session.State().String(), User: user}
}

// SessionLogin signs the console in with email and password.
func (s Server) SessionLogin(w http.ResponseWriter, r *http.Request) {
	var req entity.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.deps.Logger.Error("Error decoding request body", slog.String("error", err.Error()))
		s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"}, "error")
		return
	}

	if _, err := s.Controllers.AuthController.Login(r.Context(), req.Email, req.Password); err != nil {
		s.fail(w, err)
		return
	}

	s.httpResponse(w, http.StatusOK, s.session(), "success")
}

func (s Server) SessionLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Controllers.AuthController.Logout(r.Context()); err != nil {
		s.fail(w, err)
		return
	}

	s.httpResponse(w, http.StatusOK, map[string]string{"message": "Logged out successfully"}, "success")
}

func (s Server) GetSession(w http.ResponseWriter, _ *http.Request) {
	s.httpResponse(w, http.StatusOK, s.session(), "success")
}

// GetTodayAttendance returns today's record, or null before the first clock-in.
func (s Server) GetTodayAttendance(w http.ResponseWriter, r *http.Request) {
	att, err := s.Controllers.AttendanceController.Today(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	s.httpResponse(w, http.StatusOK, att, "success")
}

func (s Server) ClockIn(w http.ResponseWriter, r *http.Request) {
	s.clock(w, r, true)
}

func (s Server) ClockOut(w http.ResponseWriter, r *http.Request) {
	s.clock(w, r, false)
}

// clock reads the multipart fields "file" and "workMode".
func (s Server) clock(w http.ResponseWriter, r *http.Request, in bool) {
	maxMB := controllers.DefaultMaxSizeMB
	if s.deps.Config != nil && s.deps.Config.Upload.MaxSizeMB > 0 {
		maxMB = s.deps.Config.Upload.MaxSizeMB
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(maxMB)<<20+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		s.deps.Logger.Error("Error parsing multipart form", slog.String("error", err.Error()))

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.httpResponse(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "File too large"}, "error")
			return
		}

		s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart form"}, "error")
		return
	}

	mode := entity.WorkMode(r.FormValue("workMode"))
	if !mode.Valid() {
		s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": "workMode must be WFH or WFO"}, "error")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": "Photo is required"}, "error")
		return
	}
	defer file.Close()

	photo, err := s.Controllers.UploadController.PreparePhoto(header.Filename, file)
	if err != nil {
		s.fail(w, err)
		return
	}

	var att *entity.Attendance
	if in {
		att, err = s.Controllers.AttendanceController.ClockIn(r.Context(), photo, mode)
	} else {
		att, err = s.Controllers.AttendanceController.ClockOut(r.Context(), photo, mode)
	}

	if err != nil {
		s.fail(w, err)
		return
	}

	s.httpResponse(w, http.StatusCreated, att, "success")
}

// GetAttendanceHistory lists the signed-in user's own records.
func (s Server) GetAttendanceHistory(w http.ResponseWriter, r *http.Request, params GetAttendanceParams) {
	employeeID, err := s.deps.Session.EmployeeID()
	if err != nil {
		s.httpResponse(w, http.StatusUnauthorized, "Unauthorized", "error")
		return
	}

	s.GetEmployeeAttendances(w, r, employeeID, params)
}

func (s Server) GetEmployeeAttendances(w http.ResponseWriter, r *http.Request, id string, params GetAttendanceParams) {
	rng, err := parseRange(params)
	if err != nil {
		s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()}, "error")
		return
	}

	page, limit := pageParams(params.Page, params.Limit)

	history, err := s.Controllers.AttendanceController.History(r.Context(), id, rng, page, limit)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.httpResponse(w, http.StatusOK, history, "success")
}

func (s Server) GetEmployees(w http.ResponseWriter, r *http.Request, params GetEmployeesParams) {
	page, limit := pageParams(params.Page, params.Limit)

	employees, err := s.Controllers.EmployeeController.List(r.Context(), page, limit)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.httpResponse(w, http.StatusOK, employees, "success")
}

func (s Server) GetEmployeeByID(w http.ResponseWriter, r *http.Request, id string) {
	employee, err := s.Controllers.EmployeeController.Get(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}

	if employee == nil {
		s.httpResponse(w, http.StatusNotFound, "Employee not found", "error")
		return
	}

	s.httpResponse(w, http.StatusOK, employee, "success")
}

func (s Server) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req entity.CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.deps.Logger.Error("Error decoding request body", slog.String("error", err.Error()))
		s.httpResponse(w, http.StatusBadRequest, "Invalid request body", "error")
		return
	}

	employee, err := s.Controllers.EmployeeController.Create(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.httpResponse(w, http.StatusCreated, employee, "success")
}

func (s Server) UpdateEmployee(w http.ResponseWriter, r *http.Request, id string) {
	var req entity.UpdateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.deps.Logger.Error("Error decoding request body", slog.String("error", err.Error()))
		s.httpResponse(w, http.StatusBadRequest, "Invalid request body", "error")
		return
	}

	employee, err := s.Controllers.EmployeeController.Update(r.Context(), id, req)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.httpResponse(w, http.StatusOK, employee, "success")
}

func (s Server) DeleteEmployee(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.Controllers.EmployeeController.Delete(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}

	s.httpResponse(w, http.StatusOK, map[string]string{"message": "Employee deleted"}, "success")
}

func parseRange(params GetAttendanceParams) (entity.AttendanceRange, error) {
	var rng entity.AttendanceRange

	for _, p := range []struct {
		value *string
		dest  *time.Time
	}{
		{params.StartDate, &rng.StartDate},
		{params.EndDate, &rng.EndDate},
	} {
		if p.value == nil || *p.value == "" {
			continue
		}

		t, err := time.Parse(dateLayout, *p.value)
		if err != nil {
			return rng, errors.New("dates must look like 2006-01-02")
		}
		*p.dest = t
	}

	return rng, nil
}

func pageParams(page, limit *int) (int, int) {
	p, l := controllers.DefaultPage, controllers.DefaultLimit
	if page != nil && *page > 0 {
		p = *page
	}

	if limit != nil && *limit > 0 {
		l = *limit
	}

	return p, l
}

// fail maps a controller error onto a status code. Upstream failures
// without a status become 502.
func (s Server) fail(w http.ResponseWriter, err error) {
	var (
		apiErr *transport.APIError
		vErr   *schema.ValidationError
	)

	status := http.StatusBadGateway
	data := map[string]any{"error": err.Error()}

	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		data["fields"] = vErr.ToMap()
	case errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusBadRequest:
		status = apiErr.StatusCode
	case errors.Is(err, controllers.ErrNoEmployee):
		status = http.StatusUnauthorized
	case errors.Is(err, controllers.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, controllers.ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, controllers.ErrNoPhoto):
		status = http.StatusBadRequest
	}

	s.httpResponse(w, status, data, "error")
}

func (s Server) paramError(w http.ResponseWriter, _ *http.Request, err error) {
	s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()}, "error")
}

func (s Server) httpResponse(w http.ResponseWriter, status int, data any, respType string) {
	resp := map[string]any{
		"status": status,
		"type":   respType,
		"data":   data,
	}

	respData, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		s.deps.Logger.Error("Error marshaling response", slog.String("error", marshalErr.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(respData); err != nil {
		s.deps.Logger.Error("Error writing response", slog.String("error", err.Error()))
	}
}
