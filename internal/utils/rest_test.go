package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithErrorCode(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithErrorCode(w, http.StatusForbidden, "upgrade_required", "no providers for tier", map[string]string{"tier": "trial"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Error   string            `json:"error"`
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "upgrade_required", body.Code)
	assert.Equal(t, "no providers for tier", body.Error)
	assert.Equal(t, "trial", body.Details["tier"])
}

func TestRespondWithError_OmitsCode(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithError(w, http.StatusUnauthorized, "missing token")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"missing token"}`, w.Body.String())
}

func TestRespondWithJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, RespondWithJSON(w, http.StatusCreated, map[string]any{"success": true, "attempts": 2}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"attempts":2}`, w.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		TimeFrame string `json:"time_frame"`
	}

	cases := map[string]struct {
		input   string
		wantErr string
	}{
		"valid":         {input: `{"time_frame":"7d"}`},
		"empty":         {input: ``, wantErr: "empty"},
		"unknown field": {input: `{"time_frame":"7d","extra":1}`, wantErr: "unknown field"},
		"two documents": {input: `{"time_frame":"7d"}{}`, wantErr: "single JSON document"},
		"malformed":     {input: `{"time_frame":`, wantErr: "invalid JSON"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.input))
			var b body
			err := DecodeJSON(r, &b)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "7d", b.TimeFrame)
		})
	}
}
