package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionStaticText(t *testing.T) {
	instr := NewInstructionFromText("You are a helpful assistant.")
	assert.True(t, instr.IsStatic())

	text, err := instr.Resolve(Identity{Name: "helper"})
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful assistant.", text)
}

func TestInstructionTemplatePlaceholders(t *testing.T) {
	instr := NewInstructionFromText("You are {{.name}}, a {{.role}}. Objective: {{.objective}}.")

	text, err := instr.Resolve(Identity{
		Name:      "researcher",
		Role:      "research assistant",
		Objective: "find primary sources",
	})
	require.NoError(t, err)
	assert.Equal(t, "You are researcher, a research assistant. Objective: find primary sources.", text)
}

func TestInstructionFromFunc(t *testing.T) {
	instr := NewInstructionFromFunc(func(identity Identity) (string, error) {
		return "dynamic for " + identity.Name, nil
	})
	assert.False(t, instr.IsStatic())

	text, err := instr.Resolve(Identity{Name: "helper"})
	require.NoError(t, err)
	assert.Equal(t, "dynamic for helper", text)
}

func TestInstructionProviderErrorPropagates(t *testing.T) {
	boom := errors.New("state unavailable")
	instr := NewInstructionFromFunc(func(Identity) (string, error) {
		return "", boom
	})

	_, err := instr.Resolve(Identity{})
	assert.ErrorIs(t, err, boom)
}
