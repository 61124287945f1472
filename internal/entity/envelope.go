package entity

import (
	"encoding/json"
)

// Envelope wraps every API response body.
type Envelope[T any] struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
	Meta    *PaginationMeta `json:"meta,omitempty"`
}

type UploadResult struct {
	URL string `json:"url" validate:"required"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (u *UploadResult) SetExtra(extra map[string]json.RawMessage) {
	u.Extra = extra
}

type PaginationMeta struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	Total           int  `json:"total"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// NewPaginationMeta derives the paging flags from page, limit and total.
func NewPaginationMeta(page, limit, total int) PaginationMeta {
	totalPages := 0
	if limit > 0 && total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return PaginationMeta{
		Page:            page,
		Limit:           limit,
		Total:           total,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// Consistent reports whether the derived fields match page, limit and total.
func (m PaginationMeta) Consistent() bool {
	return m == NewPaginationMeta(m.Page, m.Limit, m.Total)
}

type Page[T any] struct {
	Items []T            `json:"items"`
	Meta  PaginationMeta `json:"meta"`
}

func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	fields := make(map[string]json.RawMessage)
	if err = json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	for k, raw := range extra {
		if _, known := fields[k]; !known {
			fields[k] = raw
		}
	}

	return json.Marshal(fields)
}
