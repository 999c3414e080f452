package demo

import (
	"math"

	"netcode-csp/internal/input"
)

// Scripted returns a repeating input pattern: walk forward while slowly
// turning, strafe, then idle. It exercises movement, turning and idle ticks.
func Scripted(tick uint64) input.Command {
	const period = 180
	phase := tick % period
	yaw := float32(math.Mod(float64(tick)*0.02, 2*math.Pi))
	switch {
	case phase < 90:
		return input.NewCommand(input.ButtonForward, yaw, 0)
	case phase < 120:
		return input.NewCommand(input.ButtonRight, yaw, 0)
	case phase < 150:
		return input.NewCommand(input.ButtonBack|input.ButtonLeft, yaw, 0)
	default:
		return input.NewCommand(0, yaw, 0)
	}
}
