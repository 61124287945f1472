package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adamanr/hr_console/internal/cache"
	"github.com/adamanr/hr_console/internal/config"
	"github.com/adamanr/hr_console/internal/controllers"
	"github.com/adamanr/hr_console/internal/session"
	"github.com/adamanr/hr_console/internal/transport"
	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// upstream fakes the HR REST API for one signed-in role.
func upstream(t *testing.T, role string) *httptest.Server {
	t.Helper()

	ts := testNow.Format(time.RFC3339)
	write := func(w http.ResponseWriter, status int, body map[string]any) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}

	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"id": "u-1", "name": "Ayu", "email": "ayu@example.com", "accessToken": "tok", "roles": []string{role},
		}})
	})
	r.Get("/attendances/current/today", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusNotFound, map[string]any{"success": false, "message": "Attendance not found"})
	})
	r.Post("/upload/photo", func(w http.ResponseWriter, req *http.Request) {
		if _, _, err := req.FormFile("file"); err != nil {
			write(w, http.StatusBadRequest, map[string]any{"success": false, "message": "file missing"})
			return
		}
		write(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"url": "https://cdn.example.com/in.jpg"}})
	})
	r.Post("/attendances", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{
			"id": "a-1", "employeeId": "u-1", "date": ts, "checkIn": ts, "workMode": "WFO",
			"checkInPhoto": "https://cdn.example.com/in.jpg", "createdAt": ts, "updatedAt": ts,
		}})
	})
	r.Get("/employees", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, map[string]any{"success": true, "data": []any{map[string]any{
			"id": "1", "employeeId": "EMP-1", "name": "Budi", "email": "budi@example.com",
			"status": "ACTIVE", "createdAt": ts, "updatedAt": ts,
		}}})
	})
	r.Get("/employees/{id}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "id") == "500" {
			write(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "database down"})
			return
		}
		write(w, http.StatusNotFound, map[string]any{"success": false, "message": "Employee not found"})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv
}

type gateway struct {
	handler http.Handler
	deps    *controllers.Dependens
}

func newGateway(t *testing.T, upstreamURL string) *gateway {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{}
	cfg.Gateway.AllowedOrigins = []string{"http://localhost:5173"}
	cfg.Upload.MaxSizeMB = 1
	cfg.Upload.AllowedTypes = controllers.DefaultAllowedTypes

	store := session.NewStore(session.NewMemoryStorage(), logger)
	client, err := transport.NewClient(upstreamURL, store, logger)
	require.NoError(t, err)

	deps := &controllers.Dependens{
		API:     client,
		Cache:   cache.New(logger),
		Session: store,
		Logger:  logger,
		Config:  cfg,
		Now:     func() time.Time { return testNow },
	}

	srv := NewServer(deps, controllers.NewControllers(deps))

	return &gateway{handler: NewRouter(srv, prometheus.NewRegistry()), deps: deps}
}

func (g *gateway) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}

	return rec.Code, body
}

func (g *gateway) login(t *testing.T) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/session/login",
		strings.NewReader(`{"email":"ayu@example.com","password":"secret"}`))
	status, body := g.do(t, req)
	require.Equal(t, http.StatusOK, status, body)
}

func TestGateway_RoleGates(t *testing.T) {
	tests := []struct {
		name         string
		role         string
		login        bool
		method, path string
		expected     int
	}{
		{name: "anonymous employees", method: http.MethodGet, path: "/employees", expected: http.StatusUnauthorized},
		{name: "anonymous attendance", method: http.MethodGet, path: "/attendance/today", expected: http.StatusUnauthorized},
		{name: "employee cannot list employees", role: "EMPLOYEE", login: true, method: http.MethodGet, path: "/employees", expected: http.StatusForbidden},
		{name: "employee sees attendance", role: "EMPLOYEE", login: true, method: http.MethodGet, path: "/attendance/today", expected: http.StatusOK},
		{name: "hr lists employees", role: "HR", login: true, method: http.MethodGet, path: "/employees", expected: http.StatusOK},
		{name: "superadmin lists employees", role: "SUPERADMIN", login: true, method: http.MethodGet, path: "/employees?page=2&limit=5", expected: http.StatusOK},
		{name: "unknown role sees nothing", role: "INTERN", login: true, method: http.MethodGet, path: "/attendance/today", expected: http.StatusForbidden},
		{name: "bad page param", role: "HR", login: true, method: http.MethodGet, path: "/employees?page=abc", expected: http.StatusBadRequest},
		{name: "missing employee", role: "ADMIN", login: true, method: http.MethodGet, path: "/employees/42", expected: http.StatusNotFound},
		{name: "upstream failure is not a 404", role: "ADMIN", login: true, method: http.MethodGet, path: "/employees/500", expected: http.StatusInternalServerError},
		{name: "bad history date", role: "HR", login: true, method: http.MethodGet, path: "/attendance/history?startDate=14-03-2025", expected: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(t, upstream(t, tt.role).URL)
			if tt.login {
				g.login(t)
			}

			status, body := g.do(t, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.expected, status, body)
			assert.EqualValues(t, tt.expected, body["status"])
		})
	}
}

func TestGateway_Session(t *testing.T) {
	g := newGateway(t, upstream(t, "HR").URL)

	_, body := g.do(t, httptest.NewRequest(http.MethodGet, "/session", nil))
	assert.Equal(t, "success", body["type"])
	assert.Equal(t, "unknown", body["data"].(map[string]any)["state"])

	g.login(t)

	_, body = g.do(t, httptest.NewRequest(http.MethodGet, "/session", nil))
	data := body["data"].(map[string]any)
	assert.Equal(t, "authenticated", data["state"])
	assert.Equal(t, "", data["user"].(map[string]any)["accessToken"])

	status, _ := g.do(t, httptest.NewRequest(http.MethodPost, "/session/logout", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, session.StateAnonymous, g.deps.Session.State())
}

func TestGateway_CreateEmployeeValidation(t *testing.T) {
	g := newGateway(t, upstream(t, "HR").URL)
	g.login(t)

	req := httptest.NewRequest(http.MethodPost, "/employees", strings.NewReader(`{"employeeId":"EMP-2","name":"Citra","email":"bad","password":"secret1"}`))
	status, body := g.do(t, req)

	require.Equal(t, http.StatusBadRequest, status)
	fields := body["data"].(map[string]any)["fields"].(map[string]any)
	assert.Contains(t, fields, "email")
}

func photoForm(t *testing.T, mode string) (*bytes.Buffer, string) {
	t.Helper()

	var img bytes.Buffer
	require.NoError(t, imaging.Encode(&img, imaging.New(32, 32, color.NRGBA{G: 200, A: 255}), imaging.PNG))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("workMode", mode))

	part, err := mw.CreateFormFile("file", "selfie.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestGateway_ClockIn(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		expected int
	}{
		{name: "recorded", mode: "WFO", expected: http.StatusCreated},
		{name: "bad work mode", mode: "REMOTE", expected: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(t, upstream(t, "EMPLOYEE").URL)
			g.login(t)

			body, contentType := photoForm(t, tt.mode)
			req := httptest.NewRequest(http.MethodPost, "/attendance/clock-in", body)
			req.Header.Set("Content-Type", contentType)

			status, resp := g.do(t, req)
			require.Equal(t, tt.expected, status, resp)

			if tt.expected != http.StatusCreated {
				return
			}

			assert.Equal(t, "a-1", resp["data"].(map[string]any)["id"])

			status, resp = g.do(t, httptest.NewRequest(http.MethodGet, "/attendance/today", nil))
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, "a-1", resp["data"].(map[string]any)["id"])
		})
	}
}

func TestGateway_CORSAndMetrics(t *testing.T) {
	g := newGateway(t, upstream(t, "HR").URL)

	req := httptest.NewRequest(http.MethodOptions, "/employees", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	_, _ = g.do(t, httptest.NewRequest(http.MethodGet, "/session", nil))

	rec = httptest.NewRecorder()
	g.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil).WithContext(context.Background()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/session",status="200"} 1`)
}
