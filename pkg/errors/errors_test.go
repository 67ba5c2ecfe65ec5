package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		msg      string
		expected string
	}{
		{
			name:     "wrap nil error",
			err:      nil,
			msg:      "additional context",
			expected: "",
		},
		{
			name:     "wrap standard error",
			err:      errors.New("original error"),
			msg:      "additional context",
			expected: "additional context: original error",
		},
		{
			name:     "wrap with empty message",
			err:      errors.New("original error"),
			msg:      "",
			expected: ": original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Wrap(tt.err, tt.msg)
			if tt.err == nil {
				assert.NoError(t, result)
				return
			}
			assert.Equal(t, tt.expected, result.Error())
			assert.ErrorIs(t, result, tt.err)
		})
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(ErrNotFound, "project %s on %s", "sodium", "modrinth")
	assert.EqualError(t, err, "project sodium on modrinth: not found")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, Wrapf(nil, "ignored %d", 1))
}

func TestStructuredErrorsClassify(t *testing.T) {
	amb := &AmbiguousError{Query: "sodium reforged", Candidates: []string{"modrinth:a", "modrinth:b"}}
	assert.ErrorIs(t, amb, ErrAmbiguous)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", amb), ErrAmbiguous)
	assert.Contains(t, amb.Error(), "modrinth:a, modrinth:b")

	dup := &DuplicateError{Identity: "modrinth:AANobbMI", Paths: []string{"a.jar", "b.jar"}}
	assert.ErrorIs(t, dup, ErrAmbiguous)
	assert.NotErrorIs(t, dup, ErrNameConflict)

	conflict := &ConflictError{Path: "x.jar", Existing: "x.jar.disabled"}
	assert.ErrorIs(t, conflict, ErrNameConflict)
	assert.Equal(t, "name conflict: x.jar collides with x.jar.disabled", conflict.Error())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", Wrap(ErrRateLimited, "search"), true},
		{"timeout", Wrap(timeoutErr{}, "download"), true},
		{"unavailable", ErrUnavailable, false},
		{"server error", Wrap(ErrServerError, "GET /v2/search: HTTP 503"), true},
		{"canceled", context.Canceled, false},
		{"not found", ErrNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsProviderDown(t *testing.T) {
	assert.True(t, IsProviderDown(ErrUnavailable))
	assert.True(t, IsProviderDown(ErrRateLimited))
	assert.True(t, IsProviderDown(ErrServerError))
	assert.ErrorIs(t, ErrServerError, ErrUnavailable)
	assert.False(t, IsProviderDown(ErrNotFound))
	assert.False(t, IsProviderDown(ErrIncompatible))
}
