package response_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakoodev/cliscale/core/response"
)

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("writes body with content type", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		err := response.JSON(rec, http.StatusCreated, map[string]string{"id": "abc"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"id":"abc"}`, rec.Body.String())
	})

	t.Run("no body for 204", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		err := response.JSON(rec, http.StatusNoContent, map[string]string{"ignored": "yes"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("nil value writes no body", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		err := response.JSON(rec, http.StatusOK, nil)
		require.NoError(t, err)

		assert.Empty(t, rec.Body.String())
	})
}

func TestError(t *testing.T) {
	t.Parallel()

	t.Run("writes http error with status and code", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		err := response.Error(rec, response.ErrNotFound.WithMessage("session not found"))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"code":"not_found","message":"session not found"}`, rec.Body.String())
	})

	t.Run("includes request id when set", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		err := response.Error(rec, response.ErrTooManyRequests.WithRequestID("req-123"))
		require.NoError(t, err)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), `"request_id":"req-123"`)
	})

	t.Run("unknown errors become generic 500", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		err := response.Error(rec, errors.New("pg: connection refused"))
		require.NoError(t, err)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
		assert.Contains(t, rec.Body.String(), "internal_server_error")
	})

	t.Run("unwraps to find http error", func(t *testing.T) {
		t.Parallel()

		wrapped := errors.Join(response.ErrUnauthorized, errors.New("bad token"))

		rec := httptest.NewRecorder()
		err := response.Error(rec, wrapped)
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
