package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"not found", New(KindNotFound, "nf", "missing"), http.StatusNotFound},
		{"unauthorized", New(KindUnauthorized, "u", "no"), http.StatusUnauthorized},
		{"forbidden", New(KindForbidden, "f", "no"), http.StatusForbidden},
		{"conflict", New(KindConflict, "c", "dup"), http.StatusConflict},
		{"upstream keeps status", Upstream(503, "down"), http.StatusServiceUnavailable},
		{"upstream without status", Upstream(0, "down"), http.StatusBadGateway},
		{"configuration", Configuration("env"), http.StatusInternalServerError},
		{"integrity", DataIntegrity("bad doc", nil), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", Validation("bad")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIs_MatchesSentinelAfterWrap(t *testing.T) {
	sentinel := New(KindNotFound, "user_not_found", "Email not found")
	wrapped := fmt.Errorf("lookup: %w", sentinel.Wrap(errors.New("no documents")))

	assert.ErrorIs(t, wrapped, sentinel)
	assert.NotErrorIs(t, wrapped, New(KindNotFound, "lecture_not_found", "x"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "bad", PublicMessage(Validation("bad"), "fallback"))
	assert.Equal(t, "fallback", PublicMessage(errors.New("secret detail"), "fallback"))
	assert.Equal(t, "fallback", PublicMessage(DataIntegrity("decode", nil), "fallback"))
}
