package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/repo-rater/internal/handler"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]handler.HealthCheck
		wantStatus int
		wantBody   string
	}{
		{"no checks", nil, http.StatusOK, `{"status":"ok"}`},
		{"all healthy", map[string]handler.HealthCheck{"store": ok, "events": ok}, http.StatusOK,
			`{"status":"ok","checks":{"store":"ok","events":"ok"}}`},
		{"one down", map[string]handler.HealthCheck{"store": ok, "events": down}, http.StatusServiceUnavailable,
			`{"status":"degraded","checks":{"store":"ok","events":"connection refused"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(tt.checks, testLogger())

			rr := httptest.NewRecorder()
			h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
		})
	}
}
