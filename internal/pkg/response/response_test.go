package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "session-service/internal/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, 0, "ok", map[string]int{"count": 2})

	assert.Equal(t, http.StatusOK, w.Code)
	r := decode(t, w)
	assert.True(t, r.Success)
	assert.Equal(t, "ok", r.Message)
	assert.Empty(t, r.Error)
}

func TestErrorAborts(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, http.StatusTeapot, "nope", errors.New("boom"), map[string]string{"hint": "x"})

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusTeapot, w.Code)
	r := decode(t, w)
	assert.False(t, r.Success)
	assert.Equal(t, "boom", r.Error)
	assert.NotNil(t, r.Data)
}

func TestStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unreachable store", xerrors.Unavailable(errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"other failure", errors.New("marshal"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			StoreError(c, "failed", tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
