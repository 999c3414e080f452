package predict

import (
	"time"

	"netcode-csp/internal/input"
	"netcode-csp/internal/net/proto"
)

// LocalApplier applies one command to the client's own state. It is called
// once when the command is recorded and again on every replay, so it must be
// deterministic for a given starting state.
type LocalApplier interface {
	ApplyLocal(cmd input.Command, timestep time.Duration)
}

// LocalApplierFunc adapts a function to LocalApplier.
type LocalApplierFunc func(cmd input.Command, timestep time.Duration)

func (f LocalApplierFunc) ApplyLocal(cmd input.Command, timestep time.Duration) {
	if f != nil {
		f(cmd, timestep)
	}
}

// ConnectionApplier applies one command from a remote connection on the server.
type ConnectionApplier interface {
	ApplyConnection(cmd input.Command, timestep time.Duration, conn Connection)
}

// ConnectionApplierFunc adapts a function to ConnectionApplier.
type ConnectionApplierFunc func(cmd input.Command, timestep time.Duration, conn Connection)

func (f ConnectionApplierFunc) ApplyConnection(cmd input.Command, timestep time.Duration, conn Connection) {
	if f != nil {
		f(cmd, timestep, conn)
	}
}

// Connection is an ordered, reliable message channel to one peer. Send must
// not retain payload after it returns.
type Connection interface {
	ID() string
	Send(msg proto.MessageID, payload []byte) error
}

// Stepper advances the simulation by one timestep. The server runs it before
// building snapshots.
type Stepper interface {
	Step(timestep time.Duration)
}

// StepperFunc adapts a function to Stepper.
type StepperFunc func(timestep time.Duration)

func (f StepperFunc) Step(timestep time.Duration) {
	if f != nil {
		f(timestep)
	}
}
