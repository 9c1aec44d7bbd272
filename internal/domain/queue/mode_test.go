package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlayMode_String(t *testing.T) {
	tests := []struct {
		mode     PlayMode
		expected string
	}{
		{ModeSequence, "sequence"},
		{ModeListLoop, "list-loop"},
		{ModeSingle, "single"},
		{ModeRandom, "random"},
		{PlayMode(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.mode.String())
	}
}

func TestParseMode(t *testing.T) {
	for _, mode := range []PlayMode{ModeSequence, ModeListLoop, ModeSingle, ModeRandom} {
		got, err := ParseMode(mode.String())
		assert.NoError(t, err)
		assert.Equal(t, mode, got)
	}

	_, err := ParseMode("shuffle")
	assert.Error(t, err)
}

func TestPlayMode_Wraps(t *testing.T) {
	assert.True(t, ModeListLoop.Wraps())
	assert.False(t, ModeSequence.Wraps())
	assert.False(t, ModeSingle.Wraps())
	assert.False(t, ModeRandom.Wraps())
}
