package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paperhands/paperhands/internal/domain"
)

func TestWriteDomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.Validation("size", "must be positive"), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{domain.ErrAccountArchived, http.StatusGone},
		{domain.ErrAlreadyUnlocked, http.StatusConflict},
		{domain.ErrStalePrice, http.StatusServiceUnavailable},
		{domain.ErrLockHeld, http.StatusConflict},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err, "boom")
		assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	}
}

func TestWriteDomainErrorWrapsAreUnwrapped(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, fmt.Errorf("trading_service: close: %w", domain.ErrNotFound), "boom")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteDomainErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, fmt.Errorf("pgx: connect: password authentication failed"), "failed to open position")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), "failed to open position")
}

func TestParseListOpts(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/trades?limit=25&offset=10", nil)
	opts := parseListOpts(r)
	assert.Equal(t, 25, opts.Limit)
	assert.Equal(t, 10, opts.Offset)

	r = httptest.NewRequest(http.MethodGet, "/api/trades?limit=9999&offset=-5", nil)
	opts = parseListOpts(r)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 0, opts.Offset)

	r = httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	opts = parseListOpts(r)
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
}
