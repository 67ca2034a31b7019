package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = stderrors.New("sentinel")

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{
			name:     "invalid year",
			err:      NewInvalidYearError(1990, 1996, 2026, errSentinel),
			wantType: ErrTypeInvalidYear,
			wantMsg:  "[INVALID_YEAR] end year 1990 is outside the supported range 1996-2026: sentinel",
		},
		{
			name:     "no data",
			err:      NewNoDataError(2024, nil),
			wantType: ErrTypeNoData,
			wantMsg:  "[NO_DATA] no enrollment rows for end year 2024",
		},
		{
			name:     "source",
			err:      NewSourceError("download failed", errSentinel),
			wantType: ErrTypeSource,
			wantMsg:  "[SOURCE] download failed: sentinel",
		},
		{
			name:     "storage",
			err:      NewStorageError("write cache", nil),
			wantType: ErrTypeStorage,
			wantMsg:  "[STORAGE] write cache",
		},
		{
			name:     "schema",
			err:      NewSchemaError("no header row", nil),
			wantType: ErrTypeSchema,
			wantMsg:  "[SCHEMA] no header row",
		},
		{
			name:     "validation",
			err:      NewAppValidationError("bad shape"),
			wantType: ErrTypeValidation,
			wantMsg:  "[VALIDATION] bad shape",
		},
		{
			name:     "config",
			err:      NewConfigError("missing url", nil),
			wantType: ErrTypeConfig,
			wantMsg:  "[CONFIG] missing url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.Equal(t, tt.wantType, TypeOf(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("fetch: %w", NewInvalidYearError(1990, 1996, 2026, errSentinel))

	assert.True(t, stderrors.Is(err, errSentinel))

	var appErr *AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, 1990, appErr.Context["end_year"])
	assert.Equal(t, 1996, appErr.Context["min_year"])
}

func TestTypeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(errSentinel))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}

func TestWithContextOnZeroValue(t *testing.T) {
	err := &AppError{Type: ErrTypeStorage}
	err.WithContext("key", "k")
	assert.Equal(t, "k", err.Context["key"])
}

func TestAPIErrorConstructors(t *testing.T) {
	err := InvalidParameterError("year", stderrors.New("not a number"))
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "INVALID_PARAMETER", err.ErrorCode)
	assert.Equal(t, "not a number", err.Details)

	nf := NotFoundError("cache entry")
	assert.Equal(t, "cache entry not found", nf.Error())

	ve := NewValidationErrors([]ValidationError{{Field: "years", Message: "required"}})
	assert.Equal(t, "VALIDATION_FAILED", ve.ErrorCode)
	assert.Equal(t, ValidationErrors{Errors: []ValidationError{{Field: "years", Message: "required"}}}, ve.Details)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrServiceUnavailable)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.ErrorCode)
}

func TestProblemDetailsMarshal(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNoData, "Not Found", "no rows", "/api/v1/enrollment/2024").
		WithExtension("end_year", 2024)

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeNoData, got["type"])
	assert.Equal(t, float64(404), got["status"])
	assert.Equal(t, "no rows", got["detail"])
	assert.Equal(t, float64(2024), got["end_year"])
}

func TestProblemDetailsExtensionsCannotShadowMembers(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad Request", "", "").
		WithExtension("status", 999)

	data, err := json.Marshal(pd)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":400`)
	assert.NotContains(t, string(data), "detail")
}
