package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to SystemState
		ok       bool
	}{
		{StateInitializing, StateRunning, true},
		{StateRunning, StateReloading, true},
		{StateReloading, StateRunning, true},
		{StateRunning, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateError, StateReloading, true},
		{StateStopped, StateRunning, false},
		{StateReloading, StateStopping, false},
		{StateInitializing, StateReloading, false},
		{SystemState(42), StateRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSystemStateString(t *testing.T) {
	assert.Equal(t, "RELOADING", StateReloading.String())
	assert.Equal(t, "UNKNOWN", SystemState(42).String())
}
