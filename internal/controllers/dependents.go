package controllers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/adamanr/hr_console/internal/cache"
	"github.com/adamanr/hr_console/internal/config"
	"github.com/adamanr/hr_console/internal/entity"
	"github.com/adamanr/hr_console/internal/session"
	"github.com/adamanr/hr_console/internal/transport"
)

type Controllers struct {
	AuthController       *AuthController
	EmployeeController   *EmployeeController
	AttendanceController *AttendanceController
	UploadController     *UploadController
}

func NewControllers(deps *Dependens) *Controllers {
	uploads := NewUploadController(deps)

	return &Controllers{
		AuthController:       NewAuthController(deps),
		EmployeeController:   NewEmployeeController(deps),
		AttendanceController: NewAttendanceController(deps, uploads),
		UploadController:     uploads,
	}
}

type Dependens struct {
	API interface {
		Get(ctx context.Context, path string, query url.Values) (*entity.Envelope[json.RawMessage], error)
		Post(ctx context.Context, path string, body any) (*entity.Envelope[json.RawMessage], error)
		Patch(ctx context.Context, path string, body any) (*entity.Envelope[json.RawMessage], error)
		Delete(ctx context.Context, path string) (*entity.Envelope[json.RawMessage], error)
		UploadFile(ctx context.Context, path string, file transport.FormFile) (*entity.Envelope[json.RawMessage], error)
	}
	Cache   *cache.Cache
	Session *session.Store
	Logger  *slog.Logger
	Config  *config.Config
	Now     func() time.Time
}

func (d *Dependens) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}

	return time.Now()
}
