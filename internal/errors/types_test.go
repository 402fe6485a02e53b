package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  string
	}{
		{ErrorTypeValidation, "VALIDATION"},
		{ErrorTypeNotFound, "NOT_FOUND"},
		{ErrorTypeRender, "RENDER"},
		{ErrorTypePersistence, "PERSISTENCE"},
		{ErrorTypeConflict, "CONFLICT"},
		{ErrorType(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.errorType.String())
		})
	}
}

func TestTemplateError_WrapAndClassify(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("saving mapping: %w", Persistence("save_mapping", cause))

	assert.True(t, IsPersistence(err))
	assert.False(t, IsValidation(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[PERSISTENCE] save_mapping")
	assert.True(t, TypeOf(err).IsRecoverable())
}

func TestTemplateError_Constructors(t *testing.T) {
	assert.True(t, IsValidation(Validation("submit", "field %q is required", "name")))
	assert.True(t, IsNotFound(NotFound("locate", "no source for %s", "t1")))
	assert.True(t, IsRender(Render("paginate", stderrors.New("boom"))))
	assert.Nil(t, Wrap(ErrorTypeRender, "noop", nil))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
	assert.False(t, ErrorTypeRender.IsRecoverable())
}
