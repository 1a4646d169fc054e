package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:        http.StatusBadRequest,
		KindNotFound:          http.StatusNotFound,
		KindTokenLocked:       http.StatusForbidden,
		KindUpdateCooldown:    http.StatusTooManyRequests,
		KindRateLimitExceeded: http.StatusTooManyRequests,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, status := range cases {
		e := New(kind, "x")
		assert.Equal(t, status, e.HTTPStatus(), "kind=%s", kind)
	}
}

func TestIsServerError(t *testing.T) {
	assert.True(t, New(KindDatabase, "boom").IsServerError())
	assert.False(t, New(KindValidation, "bad input").IsServerError())
}

func TestWrapDoesNotDoubleTag(t *testing.T) {
	inner := New(KindNotFound, "media missing")
	wrapped := Wrap(inner, KindInternal, "should be ignored")
	require.Equal(t, KindNotFound, wrapped.Kind)
	assert.Equal(t, "media missing", wrapped.Message)
}

func TestWrapPlainError(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(cause, KindIO, "failed to write blob")
	assert.Equal(t, KindIO, wrapped.Kind)
	assert.ErrorIs(t, wrapped, cause)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(New(KindValidation, "bad")))
	assert.Equal(t, KindInternal, KindOf(errors.New("untagged")))
}
