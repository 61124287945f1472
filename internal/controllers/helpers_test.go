package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"log/slog"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/adamanr/hr_console/internal/cache"
	"github.com/adamanr/hr_console/internal/config"
	"github.com/adamanr/hr_console/internal/entity"
	"github.com/adamanr/hr_console/internal/session"
	"github.com/adamanr/hr_console/internal/transport"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// MockAPI represents a mock REST client.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) Get(ctx context.Context, path string, query url.Values) (*entity.Envelope[json.RawMessage], error) {
	args := m.Called(ctx, path, query)
	env, _ := args.Get(0).(*entity.Envelope[json.RawMessage])
	return env, args.Error(1)
}

func (m *MockAPI) Post(ctx context.Context, path string, body any) (*entity.Envelope[json.RawMessage], error) {
	args := m.Called(ctx, path, body)
	env, _ := args.Get(0).(*entity.Envelope[json.RawMessage])
	return env, args.Error(1)
}

func (m *MockAPI) Patch(ctx context.Context, path string, body any) (*entity.Envelope[json.RawMessage], error) {
	args := m.Called(ctx, path, body)
	env, _ := args.Get(0).(*entity.Envelope[json.RawMessage])
	return env, args.Error(1)
}

func (m *MockAPI) Delete(ctx context.Context, path string) (*entity.Envelope[json.RawMessage], error) {
	args := m.Called(ctx, path)
	env, _ := args.Get(0).(*entity.Envelope[json.RawMessage])
	return env, args.Error(1)
}

func (m *MockAPI) UploadFile(ctx context.Context, path string, file transport.FormFile) (*entity.Envelope[json.RawMessage], error) {
	args := m.Called(ctx, path, file)
	env, _ := args.Get(0).(*entity.Envelope[json.RawMessage])
	return env, args.Error(1)
}

// Test helper functions.
func CreateTestDependencies(api *MockAPI) *Dependens {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := &config.Config{}
	cfg.Upload.MaxSizeMB = 10
	cfg.Upload.AllowedTypes = DefaultAllowedTypes

	return &Dependens{
		API:     api,
		Cache:   cache.New(logger),
		Session: session.NewStore(session.NewMemoryStorage(), logger),
		Logger:  logger,
		Config:  cfg,
		Now:     func() time.Time { return testNow },
	}
}

func LoginTestUser(t *testing.T, deps *Dependens) {
	t.Helper()

	require.NoError(t, deps.Session.Login(context.Background(), CreateTestIdentity()))
}

// Test data helpers.
func CreateTestIdentity() *entity.Identity {
	return &entity.Identity{
		ID:          "u-1",
		Name:        "Ayu Lestari",
		Email:       "ayu@example.com",
		AccessToken: "opaque-token",
		Roles:       []string{entity.RoleEmployee},
	}
}

func EmployeeJSON(id, name string) map[string]any {
	return map[string]any{
		"id":         id,
		"employeeId": "EMP-" + id,
		"name":       name,
		"email":      name + "@example.com",
		"status":     "ACTIVE",
		"createdAt":  testNow.Format(time.RFC3339),
		"updatedAt":  testNow.Format(time.RFC3339),
	}
}

func AttendanceJSON(id string, checkIn bool) map[string]any {
	att := map[string]any{
		"id":         id,
		"employeeId": "u-1",
		"date":       testNow.Format(time.RFC3339),
		"workMode":   "WFO",
		"createdAt":  testNow.Format(time.RFC3339),
		"updatedAt":  testNow.Format(time.RFC3339),
	}

	if checkIn {
		att["checkIn"] = testNow.Format(time.RFC3339)
		att["checkInPhoto"] = "https://cdn.example.com/in.jpg"
	}

	return att
}

func Success(t *testing.T, data any) *entity.Envelope[json.RawMessage] {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	return &entity.Envelope[json.RawMessage]{Success: true, Data: raw}
}

func Failure(message string) *entity.Envelope[json.RawMessage] {
	return &entity.Envelope[json.RawMessage]{Success: false, Message: message}
}

func PNGBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 40, G: 120, B: 200, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))

	return buf.Bytes()
}

func CreateTestPhoto(t *testing.T, deps *Dependens) *Photo {
	t.Helper()

	photo, err := NewUploadController(deps).PreparePhoto("selfie.png", bytes.NewReader(PNGBytes(t, 64, 48)))
	require.NoError(t, err)

	return photo
}

func StringPtr(s string) *string {
	return &s
}
