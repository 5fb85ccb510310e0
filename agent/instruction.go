package agent

import (
	"github.com/Rawaa-Al-Kabbani/agent-forge/internal/util"
)

// Provider supplies dynamic instruction text at runtime. Implementations can
// derive instructions from external state, time of day, feature flags, etc.
type Provider interface {
	Instruction(identity Identity) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as
// Providers.
type Func func(identity Identity) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(identity Identity) (string, error) { return f(identity) }

// Identity carries the agent fields available to instruction templates and
// providers.
type Identity struct {
	Name      string
	Role      string
	Objective string
}

// Instruction represents either a static instruction string or a dynamic
// provider. Static text may use Go template placeholders ({{.name}},
// {{.role}}, {{.objective}}) which are filled from the agent's identity at
// resolve time.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(identity Identity) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider or rendering
// template placeholders as needed.
func (i Instruction) Resolve(identity Identity) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(identity)
	}
	return util.RenderTemplate(i.text, map[string]any{
		"name":      identity.Name,
		"role":      identity.Role,
		"objective": identity.Objective,
	})
}
