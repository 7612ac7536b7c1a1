package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsIdentity(t *testing.T) {
	err := ErrExceedsReceivable.Wrap("退费金额 %s 超过已收 %s", "5000", "3500")

	assert.True(t, errors.Is(err, ErrExceedsReceivable))
	assert.False(t, errors.Is(err, ErrUnbalanced))
	assert.Equal(t, KindConsistency, KindOf(err))
	assert.Contains(t, err.Error(), "5000")
}

func TestKindOfThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("收款失败: %w", ErrStudentNotFound)

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "STUDENT_NOT_FOUND", CodeOf(err))
	assert.True(t, errors.Is(err, ErrStudentNotFound))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("boom")))
	assert.Equal(t, "", CodeOf(errors.New("boom")))
}

func TestValidation(t *testing.T) {
	err := Validation("金额必须大于0")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "ValidationError", KindOf(err).String())
}
