package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"civilregistry/internal/apperr"
)

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		fields  bool
	}{
		{"validation", apperr.Validation("bad", map[string][]string{"nationalId": {"required"}}), http.StatusBadRequest, "bad", true},
		{"wrapped forbidden", fmt.Errorf("ctx: %w", apperr.New(apperr.CodeForbidden, apperr.MsgForbidden)), http.StatusForbidden, apperr.MsgForbidden, false},
		{"upstream", apperr.Upstream("", errors.New("dial")), http.StatusBadGateway, apperr.MsgUpstreamFallback, false},
		{"cancelled", apperr.Cancelled(errors.New("superseded")), http.StatusRequestTimeout, apperr.MsgCancelled, false},
		{"plain error hides detail", errors.New("open /var/lib/db: permission denied"), http.StatusInternalServerError, apperr.MsgInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, zap.NewNop(), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, tt.fields, len(body.Errors) > 0)
			assert.NotContains(t, rec.Body.String(), "/var/lib")
		})
	}
}

func TestRaw(t *testing.T) {
	rec := httptest.NewRecorder()
	Raw(rec, http.StatusTeapot, "", []byte(`{"a":1}`))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, rec.Body.String())
}
