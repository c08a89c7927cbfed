package types

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "pop: state stack is empty", Errorf(KindStateStack, "pop", "state stack is empty").Error())
	assert.Equal(t, "read: EOF", Wrap(KindResponseValidation, "read", io.EOF).Error())
	assert.Equal(t, "lookup error", (&Error{Kind: KindLookup}).Error())
}

func TestSentinelsMatchByKind(t *testing.T) {
	err := fmt.Errorf("load printer.yaml: %w", Errorf(KindConfiguration, "component axis:X", "bad letter"))

	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NotErrorIs(t, err, ErrLookup)

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindConfiguration, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWrapKeepsCause(t *testing.T) {
	assert.Nil(t, Wrap(KindParameter, "op", nil))

	err := Wrap(KindParameter, "resolve", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrParameter)
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("STATE_409", "Failed to pop state", "empty")
	assert.Equal(t, "STATE_409", resp.Error.Code)
	assert.Equal(t, "empty", resp.Error.Details)
}
