package entity

import (
	"encoding/json"
	"time"
)

type WorkMode string

const (
	WorkModeWFH WorkMode = "WFH"
	WorkModeWFO WorkMode = "WFO"
)

func (m WorkMode) Valid() bool {
	return m == WorkModeWFH || m == WorkModeWFO
}

// Attendance is one employee's check-in/check-out pair for one day.
type Attendance struct {
	ID            string     `json:"id" validate:"required"`
	EmployeeID    string     `json:"employeeId" validate:"required"`
	Date          time.Time  `json:"date" validate:"required"`
	CheckIn       *time.Time `json:"checkIn,omitempty"`
	CheckOut      *time.Time `json:"checkOut,omitempty"`
	WorkMode      WorkMode   `json:"workMode" validate:"required,oneof=WFH WFO"`
	CheckInPhoto  *string    `json:"checkInPhoto,omitempty"`
	CheckOutPhoto *string    `json:"checkOutPhoto,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" validate:"required"`
	UpdatedAt     time.Time  `json:"updatedAt" validate:"required"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (a Attendance) MarshalJSON() ([]byte, error) {
	type alias Attendance
	return marshalWithExtra(alias(a), a.Extra)
}

func (a *Attendance) SetExtra(extra map[string]json.RawMessage) {
	a.Extra = extra
}

func (a *Attendance) HasCheckedIn() bool {
	return a != nil && a.CheckIn != nil
}

func (a *Attendance) HasCheckedOut() bool {
	return a != nil && a.CheckOut != nil
}

// Complete reports whether both halves of the day were recorded.
func (a *Attendance) Complete() bool {
	return a.HasCheckedIn() && a.HasCheckedOut()
}

type CreateAttendanceRequest struct {
	EmployeeID    string     `json:"employeeId" validate:"required"`
	Date          time.Time  `json:"date" validate:"required"`
	WorkMode      WorkMode   `json:"workMode" validate:"required,oneof=WFH WFO"`
	CheckIn       *time.Time `json:"checkIn,omitempty" validate:"required_without=CheckOut"`
	CheckOut      *time.Time `json:"checkOut,omitempty" validate:"required_without=CheckIn"`
	CheckInPhoto  *string    `json:"checkInPhoto,omitempty" validate:"required_with=CheckIn"`
	CheckOutPhoto *string    `json:"checkOutPhoto,omitempty" validate:"required_with=CheckOut"`
}

type UpdateAttendanceRequest struct {
	CheckIn       *time.Time `json:"checkIn,omitempty"`
	CheckOut      *time.Time `json:"checkOut,omitempty"`
	WorkMode      *WorkMode  `json:"workMode,omitempty" validate:"omitempty,oneof=WFH WFO"`
	CheckInPhoto  *string    `json:"checkInPhoto,omitempty"`
	CheckOutPhoto *string    `json:"checkOutPhoto,omitempty"`
}

// AttendanceRange filters attendance lists by day. Zero values are not sent.
type AttendanceRange struct {
	StartDate time.Time
	EndDate   time.Time
}
