package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeNotFound, "document not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeForbidden))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("load: %w", New(CodeInvalidCertificate, "certificate expired"))
		assert.True(t, HasCode(err, CodeInvalidCertificate))
		assert.Equal(t, CodeInvalidCertificate, CodeOf(err))
		assert.Equal(t, "certificate expired", MessageOf(err))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("wrap keeps cause", func(t *testing.T) {
		cause := errors.New("disk gone")
		err := Wrap(cause, CodeIO, "failed to read content")
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "io_error")
	})
}
