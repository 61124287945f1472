package entity

import (
	"encoding/json"
	"time"
)

type EmployeeStatus string

const (
	StatusActive   EmployeeStatus = "ACTIVE"
	StatusInactive EmployeeStatus = "INACTIVE"
	StatusOnLeave  EmployeeStatus = "ON_LEAVE"
)

// EmployeeStatuses lists every status the API accepts.
var EmployeeStatuses = []EmployeeStatus{StatusActive, StatusInactive, StatusOnLeave}

// Employee is the client copy of a server-owned employee record.
// Extra holds response fields this client does not know about yet.
type Employee struct {
	ID         string         `json:"id" validate:"required"`
	EmployeeID string         `json:"employeeId" validate:"required"`
	Name       string         `json:"name" validate:"required"`
	Email      string         `json:"email" validate:"required"`
	Phone      *string        `json:"phone,omitempty"`
	Department *string        `json:"department,omitempty"`
	Position   *string        `json:"position,omitempty"`
	JoinDate   *time.Time     `json:"joinDate,omitempty"`
	Status     EmployeeStatus `json:"status" validate:"required,oneof=ACTIVE INACTIVE ON_LEAVE"`
	CreatedAt  time.Time      `json:"createdAt" validate:"required"`
	UpdatedAt  time.Time      `json:"updatedAt" validate:"required"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (e Employee) MarshalJSON() ([]byte, error) {
	type alias Employee
	return marshalWithExtra(alias(e), e.Extra)
}

func (e *Employee) SetExtra(extra map[string]json.RawMessage) {
	e.Extra = extra
}

type CreateEmployeeRequest struct {
	EmployeeID string         `json:"employeeId" validate:"required"`
	Name       string         `json:"name" validate:"required"`
	Email      string         `json:"email" validate:"required,email"`
	Password   string         `json:"password" validate:"required,min=6"`
	Phone      string         `json:"phone,omitempty"`
	Department string         `json:"department,omitempty"`
	Position   string         `json:"position,omitempty"`
	JoinDate   string         `json:"joinDate,omitempty"`
	Status     EmployeeStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE ON_LEAVE"`
}

// UpdateEmployeeRequest is a partial update. There is no employeeId field:
// the human-facing code cannot change once the record exists.
type UpdateEmployeeRequest struct {
	Name       *string         `json:"name,omitempty"`
	Email      *string         `json:"email,omitempty" validate:"omitempty,email"`
	Password   *string         `json:"password,omitempty"`
	Phone      *string         `json:"phone,omitempty"`
	Department *string         `json:"department,omitempty"`
	Position   *string         `json:"position,omitempty"`
	JoinDate   *string         `json:"joinDate,omitempty"`
	Status     *EmployeeStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE ON_LEAVE"`
}
