package input

import (
	"netcode-csp/internal/scene"
)

// ID tags a command. Ids are assigned by the client, strictly increasing,
// and wrap after 2^32 ticks, which is not handled.
type ID uint32

// Button bits understood by the reference simulation. Hosts may define more.
const (
	ButtonForward uint32 = 1 << iota
	ButtonBack
	ButtonLeft
	ButtonRight
	ButtonJump
	ButtonFire
)

// Command is one tick of control input. Values are treated as immutable once
// tagged: WithID and the constructors copy the extra variables.
type Command struct {
	ID      ID
	Buttons uint32
	Yaw     float32
	Pitch   float32
	Extra   scene.Variables
}

// NewCommand builds an untagged command.
func NewCommand(buttons uint32, yaw, pitch float32) Command {
	return Command{Buttons: buttons, Yaw: yaw, Pitch: pitch}
}

// WithID returns a tagged copy that shares no mutable state with c.
func (c Command) WithID(id ID) Command {
	tagged := c
	tagged.ID = id
	tagged.Extra = c.Extra.Clone()
	return tagged
}

// Pressed reports whether every bit in mask is held.
func (c Command) Pressed(mask uint32) bool {
	return c.Buttons&mask == mask
}

// Equal compares every field including extras.
func (c Command) Equal(o Command) bool {
	return c.ID == o.ID &&
		c.Buttons == o.Buttons &&
		c.Yaw == o.Yaw &&
		c.Pitch == o.Pitch &&
		c.Extra.Equal(o.Extra)
}
