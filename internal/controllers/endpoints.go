package controllers

import "net/url"

const (
	PathLogin   = "/auth/login"
	PathCurrent = "/auth/current"

	PathEmployees = "/employees"

	PathAttendances           = "/attendances"
	PathAttendancesAll        = "/attendances/all"
	PathAttendancesCurrent    = "/attendances/current"
	PathAttendancesToday      = "/attendances/current/today"
	PathAttendancesByEmployee = "/attendances/employee"

	PathUploadPhoto = "/upload/photo"
)

func employeePath(id string) string {
	return PathEmployees + "/" + url.PathEscape(id)
}

func attendancePath(id string) string {
	return PathAttendances + "/" + url.PathEscape(id)
}

func employeeAttendancesPath(employeeID string) string {
	return PathAttendancesByEmployee + "/" + url.PathEscape(employeeID)
}
