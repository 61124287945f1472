package controllers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/adamanr/hr_console/internal/cache"
	"github.com/adamanr/hr_console/internal/entity"
	"github.com/adamanr/hr_console/internal/schema"
	"github.com/adamanr/hr_console/internal/transport"
)

type EmployeeController struct {
	errorState
	deps *Dependens
}

func NewEmployeeController(deps *Dependens) *EmployeeController {
	return &EmployeeController{
		deps: deps,
	}
}

func employeesKey(page, limit int) cache.Key {
	return cache.NewKey(PathEmployees).
		With("page", strconv.Itoa(page)).
		With("limit", strconv.Itoa(limit))
}

// Query subscribes to one page of the employee list. The caller must Close it.
func (c *EmployeeController) Query(ctx context.Context, page, limit int) *cache.Query[*entity.Page[entity.Employee]] {
	key := employeesKey(page, limit)

	return cache.UseQuery(ctx, c.deps.Cache, key, func(ctx context.Context) (*entity.Page[entity.Employee], error) {
		return c.fetchPage(ctx, key, page, limit)
	})
}

func (c *EmployeeController) List(ctx context.Context, page, limit int) (*entity.Page[entity.Employee], error) {
	q := c.Query(ctx, page, limit)
	defer q.Close()

	data, err := q.Wait(ctx)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error fetching employees", "Failed to fetch employees", err)
	}

	c.clearError()

	return data, nil
}

func (c *EmployeeController) fetchPage(ctx context.Context, key cache.Key, page, limit int) (*entity.Page[entity.Employee], error) {
	env, err := c.deps.API.Get(ctx, PathEmployees, key.Query())
	if err != nil {
		return nil, err
	}

	if err = checkEnvelope(env, "Failed to fetch data"); err != nil {
		return nil, err
	}

	employees, err := schema.DecodeEmployees(env.Data)
	if err != nil {
		return nil, err
	}

	meta := entity.NewPaginationMeta(page, limit, len(employees))
	if env.Meta != nil {
		meta = entity.NewPaginationMeta(env.Meta.Page, env.Meta.Limit, env.Meta.Total)
	}

	return &entity.Page[entity.Employee]{Items: employees, Meta: meta}, nil
}

// Get reads one record without the cache. A missing employee yields nil
// without an error.
func (c *EmployeeController) Get(ctx context.Context, id string) (*entity.Employee, error) {
	const fallback = "Failed to fetch employee"

	env, err := c.deps.API.Get(ctx, employeePath(id), nil)
	if transport.IsNotFound(err) {
		c.clearError()
		return nil, nil
	}

	if err == nil {
		err = checkEnvelope(env, fallback)
	}

	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error fetching employee", fallback, err)
	}

	employee, err := schema.DecodeEmployee(env.Data)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error decoding employee", fallback, err)
	}

	c.clearError()

	return &employee, nil
}

func (c *EmployeeController) Create(ctx context.Context, req entity.CreateEmployeeRequest) (*entity.Employee, error) {
	const fallback = "Failed to create employee"

	if err := schema.ValidateCreateEmployee(req); err != nil {
		return nil, c.fail(c.deps.Logger, "Invalid employee", fallback, err)
	}

	env, err := c.deps.API.Post(ctx, PathEmployees, req)
	if err == nil {
		err = checkEnvelope(env, fallback)
	}

	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error creating employee", fallback, err)
	}

	employee, err := schema.DecodeEmployee(env.Data)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error decoding employee", fallback, err)
	}

	c.clearError()
	c.invalidate(ctx)

	return &employee, nil
}

// Update sends only the non-empty fields of req.
func (c *EmployeeController) Update(ctx context.Context, id string, req entity.UpdateEmployeeRequest) (*entity.Employee, error) {
	const fallback = "Failed to update employee"

	payload, err := updatePayload(req)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Invalid employee update", fallback, err)
	}

	env, err := c.deps.API.Patch(ctx, employeePath(id), payload)
	if err == nil {
		err = checkEnvelope(env, fallback)
	}

	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error updating employee", fallback, err)
	}

	employee, err := schema.DecodeEmployee(env.Data)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error decoding employee", fallback, err)
	}

	c.clearError()
	c.invalidate(ctx)

	return &employee, nil
}

// updatePayload strips empty strings from req and validates what is left.
func updatePayload(req entity.UpdateEmployeeRequest) (map[string]any, error) {
	payload, err := entity.RemoveEmptyStrings(req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var stripped entity.UpdateEmployeeRequest
	if err = json.Unmarshal(data, &stripped); err != nil {
		return nil, err
	}

	if err = schema.ValidateUpdateEmployee(stripped); err != nil {
		return nil, err
	}

	return payload, nil
}

func (c *EmployeeController) Delete(ctx context.Context, id string) error {
	const fallback = "Failed to delete employee"

	env, err := c.deps.API.Delete(ctx, employeePath(id))
	if err == nil {
		err = checkEnvelope(env, fallback)
	}

	if err != nil {
		return c.fail(c.deps.Logger, "Error deleting employee", fallback, err)
	}

	c.clearError()
	c.invalidate(ctx)

	return nil
}

// invalidate refreshes every cached employee page. A failed refetch does not
// undo the write that triggered it.
func (c *EmployeeController) invalidate(ctx context.Context) {
	if err := c.deps.Cache.Invalidate(ctx, PathEmployees); err != nil {
		c.deps.Logger.Warn("Error refreshing employees", slog.String("error", err.Error()))
	}
}
