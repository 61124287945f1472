package schema

import (
	"encoding/json"

	"github.com/adamanr/hr_console/internal/entity"
)

var (
	employeeSchema   = Schema[entity.Employee]{Resource: "employee", PassThrough: true}
	attendanceSchema = Schema[entity.Attendance]{Resource: "attendance", PassThrough: true}
	identitySchema   = Schema[entity.Identity]{Resource: "authenticated user", PassThrough: true}
	uploadSchema     = Schema[entity.UploadResult]{Resource: "upload result", PassThrough: true}

	loginSchema            = Schema[entity.LoginRequest]{Resource: "login request"}
	createEmployeeSchema   = Schema[entity.CreateEmployeeRequest]{Resource: "employee"}
	updateEmployeeSchema   = Schema[entity.UpdateEmployeeRequest]{Resource: "employee update"}
	createAttendanceSchema = Schema[entity.CreateAttendanceRequest]{Resource: "attendance"}
	updateAttendanceSchema = Schema[entity.UpdateAttendanceRequest]{Resource: "attendance update"}
)

func DecodeEmployee(raw json.RawMessage) (entity.Employee, error) {
	return employeeSchema.Decode(raw)
}

func DecodeEmployees(raw json.RawMessage) ([]entity.Employee, error) {
	return employeeSchema.DecodeList(raw)
}

func DecodeAttendance(raw json.RawMessage) (entity.Attendance, error) {
	return attendanceSchema.Decode(raw)
}

func DecodeAttendances(raw json.RawMessage) ([]entity.Attendance, error) {
	return attendanceSchema.DecodeList(raw)
}

func DecodeIdentity(raw json.RawMessage) (entity.Identity, error) {
	return identitySchema.Decode(raw)
}

func DecodeUpload(raw json.RawMessage) (entity.UploadResult, error) {
	return uploadSchema.Decode(raw)
}

func ValidateLogin(req entity.LoginRequest) error {
	return loginSchema.Validate(req)
}

func ValidateCreateEmployee(req entity.CreateEmployeeRequest) error {
	return createEmployeeSchema.Validate(req)
}

func ValidateUpdateEmployee(req entity.UpdateEmployeeRequest) error {
	return updateEmployeeSchema.Validate(req)
}

// ValidateWorkMode checks the mode on its own, before anything is uploaded.
func ValidateWorkMode(mode entity.WorkMode) error {
	if mode.Valid() {
		return nil
	}

	return &ValidationError{
		Resource: "attendance",
		Fields:   []FieldError{{Field: "workMode", Message: "must be one of [WFH WFO]"}},
	}
}

func ValidateCreateAttendance(req entity.CreateAttendanceRequest) error {
	return createAttendanceSchema.Validate(req)
}

func ValidateUpdateAttendance(req entity.UpdateAttendanceRequest) error {
	return updateAttendanceSchema.Validate(req)
}
