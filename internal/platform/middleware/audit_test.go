package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carehub/hms/internal/platform/auth"
)

func TestAudit_LogsMutation(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	path := "/api/v1/admissions/6f1c4c8e-6f7e-4b8e-9a53-8c3b3c1d2e4f/payments"
	req := httptest.NewRequest(http.MethodPost, path, nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "staff-1")
	ctx = context.WithValue(ctx, auth.UserRolesKey, []string{"cashier"})
	req = req.WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-9")

	handler := func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}
	if err := Audit(zerolog.New(&buf))(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON audit entry: %v", err)
	}
	checks := map[string]interface{}{
		"type":        "audit",
		"user_id":     "staff-1",
		"action":      "create",
		"resource":    "admissions",
		"resource_id": "6f1c4c8e-6f7e-4b8e-9a53-8c3b3c1d2e4f",
		"success":     true,
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Errorf("%s = %v, want %v", k, entry[k], want)
		}
	}
}

func TestAudit_SkipsReads(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	Audit(zerolog.New(&buf))(okHandler)(c)
	if buf.Len() != 0 {
		t.Errorf("expected no audit entry for GET, got %s", buf.String())
	}
}

func TestAudit_RecordsFailure(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/beds/6f1c4c8e-6f7e-4b8e-9a53-8c3b3c1d2e4f", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "bed is occupied")
	}
	Audit(zerolog.New(&buf))(handler)(c)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON audit entry: %v", err)
	}
	if entry["success"] != false || entry["status"] != float64(http.StatusConflict) {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestResourceFromPath(t *testing.T) {
	tests := []struct {
		path     string
		resource string
		id       string
	}{
		{"/api/v1/medicines/receive", "medicines", ""},
		{"/api/v1/beds/6f1c4c8e-6f7e-4b8e-9a53-8c3b3c1d2e4f", "beds", "6f1c4c8e-6f7e-4b8e-9a53-8c3b3c1d2e4f"},
		{"/api/v1/", "unknown", ""},
	}
	for _, tt := range tests {
		r, id := resourceFromPath(tt.path)
		if r != tt.resource || id != tt.id {
			t.Errorf("resourceFromPath(%q) = %q, %q; want %q, %q", tt.path, r, id, tt.resource, tt.id)
		}
	}
}
