package controllers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/adamanr/hr_console/internal/cache"
	"github.com/adamanr/hr_console/internal/entity"
	"github.com/adamanr/hr_console/internal/schema"
	"github.com/adamanr/hr_console/internal/session"
	"github.com/adamanr/hr_console/internal/transport"
)

const dateLayout = "2006-01-02"

type AttendanceController struct {
	errorState
	deps    *Dependens
	uploads *UploadController
}

func NewAttendanceController(deps *Dependens, uploads *UploadController) *AttendanceController {
	return &AttendanceController{
		deps:    deps,
		uploads: uploads,
	}
}

// todayKey carries the local date so a new day never serves yesterday's
// record. Only the path is sent.
func (c *AttendanceController) todayKey() cache.Key {
	return cache.NewKey(PathAttendancesToday).With("date", c.deps.now().Format(dateLayout))
}

// TodayQuery subscribes to today's record of the signed-in user. Its data is
// nil until the user clocks in.
func (c *AttendanceController) TodayQuery(ctx context.Context) *cache.Query[*entity.Attendance] {
	return cache.UseQuery(ctx, c.deps.Cache, c.todayKey(), c.fetchToday)
}

func (c *AttendanceController) Today(ctx context.Context) (*entity.Attendance, error) {
	q := c.TodayQuery(ctx)
	defer q.Close()

	att, err := q.Wait(ctx)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error fetching today's attendance", "Failed to fetch attendance", err)
	}

	return att, nil
}

func (c *AttendanceController) fetchToday(ctx context.Context) (*entity.Attendance, error) {
	env, err := c.deps.API.Get(ctx, PathAttendancesToday, nil)
	if transport.IsNotFound(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if err = checkEnvelope(env, "Failed to fetch data"); err != nil {
		return nil, err
	}

	if isNull(env.Data) {
		return nil, nil
	}

	att, err := schema.DecodeAttendance(env.Data)
	if err != nil {
		return nil, err
	}

	return &att, nil
}

func (c *AttendanceController) ClockIn(ctx context.Context, photo *Photo, mode entity.WorkMode) (*entity.Attendance, error) {
	return c.clock(ctx, photo, mode, true)
}

func (c *AttendanceController) ClockOut(ctx context.Context, photo *Photo, mode entity.WorkMode) (*entity.Attendance, error) {
	return c.clock(ctx, photo, mode, false)
}

// clock records one half of the day. Nothing is posted when the photo upload
// fails.
func (c *AttendanceController) clock(ctx context.Context, photo *Photo, mode entity.WorkMode, in bool) (*entity.Attendance, error) {
	fallback, logMsg := "Failed to clock out", "Error clocking out"
	if in {
		fallback, logMsg = "Failed to clock in", "Error clocking in"
	}

	employeeID, err := c.deps.Session.EmployeeID()
	if err != nil {
		if errors.Is(err, session.ErrNoIdentity) {
			err = ErrNoEmployee
		}

		return nil, c.fail(c.deps.Logger, logMsg, fallback, err)
	}

	if err = schema.ValidateWorkMode(mode); err != nil {
		return nil, c.fail(c.deps.Logger, logMsg, fallback, err)
	}

	photoURL, err := c.uploads.UploadPhoto(ctx, photo)
	if err != nil {
		return nil, c.fail(c.deps.Logger, logMsg, fallback, err)
	}

	now := c.deps.now()
	req := entity.CreateAttendanceRequest{
		EmployeeID: employeeID,
		Date:       now,
		WorkMode:   mode,
	}

	if in {
		req.CheckIn, req.CheckInPhoto = &now, &photoURL
	} else {
		req.CheckOut, req.CheckOutPhoto = &now, &photoURL
	}

	if err = schema.ValidateCreateAttendance(req); err != nil {
		return nil, c.fail(c.deps.Logger, logMsg, fallback, err)
	}

	env, err := c.deps.API.Post(ctx, PathAttendances, req)
	if err == nil {
		err = checkEnvelope(env, fallback)
	}

	if err != nil {
		return nil, c.fail(c.deps.Logger, logMsg, fallback, err)
	}

	att, err := schema.DecodeAttendance(env.Data)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error decoding attendance", fallback, err)
	}

	c.deps.Cache.Set(c.todayKey(), &att)
	c.clearError()

	c.deps.Logger.Info("Attendance recorded",
		slog.String("employee", employeeID),
		slog.Bool("check_in", in),
		slog.String("work_mode", string(mode)),
	)

	c.invalidate(ctx, false)

	return &att, nil
}

func rangeKey(resource string, rng entity.AttendanceRange) cache.Key {
	key := cache.NewKey(resource)
	if !rng.StartDate.IsZero() {
		key = key.With("startDate", rng.StartDate.Format(dateLayout))
	}

	if !rng.EndDate.IsZero() {
		key = key.With("endDate", rng.EndDate.Format(dateLayout))
	}

	return key
}

func pageKey(key cache.Key, page, limit int) cache.Key {
	return key.With("page", strconv.Itoa(page)).With("limit", strconv.Itoa(limit))
}

// HistoryQuery subscribes to one page of an employee's attendance. An empty
// employeeID yields a query that never fetches.
func (c *AttendanceController) HistoryQuery(ctx context.Context, employeeID string, rng entity.AttendanceRange, page, limit int) *cache.Query[*entity.Page[entity.Attendance]] {
	var key cache.Key
	if employeeID != "" {
		key = pageKey(rangeKey(employeeAttendancesPath(employeeID), rng), page, limit)
	}

	return cache.UseQuery(ctx, c.deps.Cache, key, func(ctx context.Context) (*entity.Page[entity.Attendance], error) {
		return c.fetchPage(ctx, key, page, limit)
	})
}

func (c *AttendanceController) History(ctx context.Context, employeeID string, rng entity.AttendanceRange, page, limit int) (*entity.Page[entity.Attendance], error) {
	q := c.HistoryQuery(ctx, employeeID, rng, page, limit)
	defer q.Close()

	return c.waitPage(ctx, q, page, limit)
}

// All lists every employee's attendance.
func (c *AttendanceController) All(ctx context.Context, rng entity.AttendanceRange, page, limit int) (*entity.Page[entity.Attendance], error) {
	key := pageKey(rangeKey(PathAttendancesAll, rng), page, limit)

	q := cache.UseQuery(ctx, c.deps.Cache, key, func(ctx context.Context) (*entity.Page[entity.Attendance], error) {
		return c.fetchPage(ctx, key, page, limit)
	})
	defer q.Close()

	return c.waitPage(ctx, q, page, limit)
}

func (c *AttendanceController) waitPage(ctx context.Context, q *cache.Query[*entity.Page[entity.Attendance]], page, limit int) (*entity.Page[entity.Attendance], error) {
	data, err := q.Wait(ctx)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error fetching attendances", "Failed to fetch attendances", err)
	}

	if data == nil {
		data = &entity.Page[entity.Attendance]{Meta: entity.NewPaginationMeta(page, limit, 0)}
	}

	c.clearError()

	return data, nil
}

func (c *AttendanceController) fetchPage(ctx context.Context, key cache.Key, page, limit int) (*entity.Page[entity.Attendance], error) {
	items, meta, err := c.fetchList(ctx, key)
	if err != nil {
		return nil, err
	}

	m := entity.NewPaginationMeta(page, limit, len(items))
	if meta != nil {
		m = entity.NewPaginationMeta(meta.Page, meta.Limit, meta.Total)
	}

	return &entity.Page[entity.Attendance]{Items: items, Meta: m}, nil
}

func (c *AttendanceController) fetchList(ctx context.Context, key cache.Key) ([]entity.Attendance, *entity.PaginationMeta, error) {
	env, err := c.deps.API.Get(ctx, key.Resource, key.Query())
	if err != nil {
		return nil, nil, err
	}

	if err = checkEnvelope(env, "Failed to fetch data"); err != nil {
		return nil, nil, err
	}

	items, err := schema.DecodeAttendances(env.Data)
	if err != nil {
		return nil, nil, err
	}

	return items, env.Meta, nil
}

// Mine lists the signed-in user's own attendance.
func (c *AttendanceController) Mine(ctx context.Context, rng entity.AttendanceRange) ([]entity.Attendance, error) {
	key := rangeKey(PathAttendancesCurrent, rng)

	q := cache.UseQuery(ctx, c.deps.Cache, key, func(ctx context.Context) ([]entity.Attendance, error) {
		items, _, err := c.fetchList(ctx, key)
		return items, err
	})
	defer q.Close()

	items, err := q.Wait(ctx)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error fetching own attendances", "Failed to fetch attendances", err)
	}

	c.clearError()

	return items, nil
}

func (c *AttendanceController) Update(ctx context.Context, id string, req entity.UpdateAttendanceRequest) (*entity.Attendance, error) {
	const fallback = "Failed to update attendance"

	if err := schema.ValidateUpdateAttendance(req); err != nil {
		return nil, c.fail(c.deps.Logger, "Invalid attendance update", fallback, err)
	}

	env, err := c.deps.API.Patch(ctx, attendancePath(id), req)
	if err == nil {
		err = checkEnvelope(env, fallback)
	}

	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error updating attendance", fallback, err)
	}

	att, err := schema.DecodeAttendance(env.Data)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error decoding attendance", fallback, err)
	}

	c.clearError()
	c.invalidate(ctx, true)

	return &att, nil
}

func (c *AttendanceController) Delete(ctx context.Context, id string) error {
	const fallback = "Failed to delete attendance"

	env, err := c.deps.API.Delete(ctx, attendancePath(id))
	if err == nil {
		err = checkEnvelope(env, fallback)
	}

	if err != nil {
		return c.fail(c.deps.Logger, "Error deleting attendance", fallback, err)
	}

	c.clearError()
	c.invalidate(ctx, true)

	return nil
}

// invalidate refreshes cached attendance lists, and today's record too when
// withToday is set.
func (c *AttendanceController) invalidate(ctx context.Context, withToday bool) {
	err := c.deps.Cache.InvalidateFunc(ctx, func(k cache.Key) bool {
		if k.Under(PathAttendancesToday) {
			return withToday
		}

		return k.Under(PathAttendances)
	})
	if err != nil {
		c.deps.Logger.Warn("Error refreshing attendances", slog.String("error", err.Error()))
	}
}

func isNull(raw []byte) bool {
	return len(raw) == 0 || string(raw) == "null"
}
