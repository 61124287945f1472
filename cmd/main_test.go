package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testToken = "tok-1"

func fakeAPI(t *testing.T, role string) *httptest.Server {
	t.Helper()

	write := func(w http.ResponseWriter, status int, body map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}

	identity := map[string]any{"id": "u-1", "name": "Ayu", "email": "ayu@example.com", "roles": []string{role}}
	ts := "2025-03-14T09:30:00Z"

	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		data := map[string]any{"accessToken": testToken}
		for k, v := range identity {
			data[k] = v
		}
		write(w, http.StatusOK, map[string]any{"success": true, "data": data})
	})

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if req.Header.Get("Authorization") != "Bearer "+testToken {
					write(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthorized"})
					return
				}
				next.ServeHTTP(w, req)
			})
		})

		r.Get("/auth/current", func(w http.ResponseWriter, _ *http.Request) {
			write(w, http.StatusOK, map[string]any{"success": true, "data": identity})
		})
		r.Get("/employees", func(w http.ResponseWriter, _ *http.Request) {
			write(w, http.StatusOK, map[string]any{"success": true, "data": []any{map[string]any{
				"id": "1", "employeeId": "EMP-1", "name": "Budi", "email": "budi@example.com",
				"status": "ACTIVE", "createdAt": ts, "updatedAt": ts,
			}}})
		})
		r.Get("/attendances/current/today", func(w http.ResponseWriter, _ *http.Request) {
			write(w, http.StatusNotFound, map[string]any{"success": false, "message": "Attendance not found"})
		})
		r.Get("/attendances/current", func(w http.ResponseWriter, _ *http.Request) {
			write(w, http.StatusOK, map[string]any{"success": true, "data": []any{
				map[string]any{"id": "a-1", "employeeId": "u-1", "date": "2025-03-13T00:00:00Z", "workMode": "WFO",
					"checkIn": "2025-03-13T09:00:00Z", "checkOut": "2025-03-13T17:00:00Z", "createdAt": ts, "updatedAt": ts},
				map[string]any{"id": "a-2", "employeeId": "u-1", "date": "2025-03-14T00:00:00Z", "workMode": "WFH",
					"checkIn": "2025-03-14T09:00:00Z", "createdAt": ts, "updatedAt": ts},
			}})
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv
}

func writeConfig(t *testing.T, apiURL string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := fmt.Sprintf(`[api]
base_url = %q
timeout = "5s"

[session]
storage = "file"
file_path = %q
secret = "test-secret"

[log]
file = %q
level = "debug"
`, apiURL, filepath.Join(dir, "session.json"), filepath.Join(dir, "hrconsole.log"))

	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()

	root, cleanup := newRootCmd()
	defer cleanup()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func login(t *testing.T, cfgPath string) {
	t.Helper()

	out, err := run(t, cfgPath, "login", "--email", "ayu@example.com", "--password", "secret")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as Ayu")
}

func TestCLI_SessionSurvivesRestart(t *testing.T) {
	cfgPath := writeConfig(t, fakeAPI(t, "HR").URL)

	_, err := run(t, cfgPath, "whoami")
	require.ErrorIs(t, err, errNotSignedIn)

	login(t, cfgPath)

	out, err := run(t, cfgPath, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ayu@example.com")
	assert.Contains(t, out, "HR")
	assert.NotContains(t, out, testToken)

	out, err = run(t, cfgPath, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = run(t, cfgPath, "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestCLI_Commands(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		args     []string
		expected string
		errMsg   string
	}{
		{
			name:     "employees list",
			role:     "HR",
			args:     []string{"employees", "list"},
			expected: "Budi",
		},
		{
			name:   "employees list as employee",
			role:   "EMPLOYEE",
			args:   []string{"employees", "list"},
			errMsg: "your role cannot manage employees",
		},
		{
			name:     "today before clock in",
			role:     "EMPLOYEE",
			args:     []string{"attendance", "today"},
			expected: "Not clocked in today.",
		},
		{
			name:   "history for someone else as employee",
			role:   "EMPLOYEE",
			args:   []string{"attendance", "history", "--employee", "u-2"},
			errMsg: "only HR and admins",
		},
		{
			name:   "bad date",
			role:   "EMPLOYEE",
			args:   []string{"attendance", "history", "--from", "13/03/2025"},
			errMsg: "--from must look like",
		},
		{
			name:   "bad work mode",
			role:   "EMPLOYEE",
			args:   []string{"attendance", "clock-in", "--photo", "selfie.png", "--mode", "remote"},
			errMsg: "work mode must be WFH or WFO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := writeConfig(t, fakeAPI(t, tt.role).URL)
			login(t, cfgPath)

			out, err := run(t, cfgPath, tt.args...)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}

			require.NoError(t, err)
			assert.Contains(t, out, tt.expected)
		})
	}
}

func TestCLI_Export(t *testing.T) {
	cfgPath := writeConfig(t, fakeAPI(t, "EMPLOYEE").URL)
	login(t, cfgPath)

	target := filepath.Join(t.TempDir(), "march.xlsx")

	out, err := run(t, cfgPath, "attendance", "export", "--from", "2025-03-01", "--to", "2025-03-31", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 records")

	f, err := excelize.OpenFile(target)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Attendance")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
