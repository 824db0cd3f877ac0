package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		is       func(error) bool
		status   int
	}{
		{
			name:     "duplicate id",
			err:      NewDuplicateIDError("node", "query-2"),
			sentinel: ErrDuplicateID,
			is:       IsDuplicateID,
			status:   http.StatusConflict,
		},
		{
			name:     "dangling edge",
			err:      NewDanglingEdgeError("query-2", "answer-3", "answer-3"),
			sentinel: ErrDanglingEdge,
			is:       IsDanglingEdge,
			status:   http.StatusConflict,
		},
		{
			name:     "empty input",
			err:      NewEmptyInputError("query text"),
			sentinel: ErrEmptyInput,
			is:       IsEmptyInput,
			status:   http.StatusBadRequest,
		},
		{
			name:     "invalid bullet reference",
			err:      NewInvalidBulletReferenceError("answer-3", 5, "index out of bounds"),
			sentinel: ErrInvalidBulletReference,
			is:       IsInvalidBulletReference,
			status:   http.StatusUnprocessableEntity,
		},
		{
			name:     "materialization",
			err:      NewMaterializationError("query-2", 1, errors.New("boom")),
			sentinel: ErrMaterialization,
			is:       IsMaterialization,
			status:   http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("dispatch: %w", tt.err)

			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.True(t, tt.is(wrapped))
			assert.Equal(t, tt.status, StatusCode(wrapped))
			assert.False(t, errors.Is(wrapped, ErrNotFound))
		})
	}
}

func TestMaterializationErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("model timeout")
	err := NewMaterializationError("query-7", 2, cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retryable)
	assert.Equal(t, 2, err.Details["attempt"])
	assert.Contains(t, err.Error(), "model timeout")
}

func TestStatusCodeForPlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain")))
	assert.Nil(t, GetDomainError(errors.New("plain")))
}
