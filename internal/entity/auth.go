package entity

import (
	"encoding/json"
	"slices"
)

const (
	RoleEmployee   = "EMPLOYEE"
	RoleHR         = "HR"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPERADMIN"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Identity is the authenticated user as returned by /auth/login and /auth/current.
type Identity struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Email       string   `json:"email" validate:"required"`
	AccessToken string   `json:"accessToken"`
	Roles       []string `json:"roles"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (i Identity) MarshalJSON() ([]byte, error) {
	type alias Identity
	return marshalWithExtra(alias(i), i.Extra)
}

func (i *Identity) SetExtra(extra map[string]json.RawMessage) {
	i.Extra = extra
}

// HasAnyRole reports whether the identity holds at least one of roles.
// An empty allow-list admits every identity.
func (i *Identity) HasAnyRole(roles ...string) bool {
	if i == nil {
		return false
	}

	if len(roles) == 0 {
		return true
	}

	for _, r := range i.Roles {
		if slices.Contains(roles, r) {
			return true
		}
	}

	return false
}
