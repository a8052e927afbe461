package udferr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	e, ok := FromError(nil)
	assert.True(t, ok)
	assert.Nil(t, e)

	e, ok = FromError(New(NonRetryable, "unknown input"))
	assert.True(t, ok)
	assert.Equal(t, NonRetryable, e.ErrorKind())
	assert.Equal(t, "unknown input", e.ErrorMessage())

	wrapped := fmt.Errorf("vehicle speed: %w", Newf(Late, "minute %d already flushed", 3))
	e, ok = FromError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, Late, e.ErrorKind())
	assert.Equal(t, "Late: minute 3 already flushed", e.Error())

	e, ok = FromError(errors.New("boom"))
	assert.False(t, ok)
	assert.Equal(t, Unknown, e.ErrorKind())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Retryable, KindOf(New(Retryable, "bad speed")))
	assert.Equal(t, Unknown, KindOf(errors.New("boom")))
	assert.Equal(t, "Late", Late.String())
	assert.Equal(t, "Unknown", ErrKind(9).String())
}
