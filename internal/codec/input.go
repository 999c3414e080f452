package codec

import (
	"netcode-csp/internal/input"
)

// EncodeInput appends an input message payload:
// id u32, buttons u32, yaw f32, pitch f32, extra variables.
func EncodeInput(dst []byte, cmd input.Command) []byte {
	dst = appendU32(dst, uint32(cmd.ID))
	dst = appendU32(dst, cmd.Buttons)
	dst = appendF32(dst, cmd.Yaw)
	dst = appendF32(dst, cmd.Pitch)
	return appendVariables(dst, cmd.Extra)
}

// DecodeInput parses an input message payload strictly.
func DecodeInput(payload []byte) (input.Command, error) {
	r := newReader(payload)
	cmd := input.Command{
		ID:      input.ID(r.u32("input id")),
		Buttons: r.u32("input buttons"),
		Yaw:     r.f32("input yaw"),
		Pitch:   r.f32("input pitch"),
	}
	extra := readVariables(r)
	if err := r.finish(); err != nil {
		return input.Command{}, err
	}
	if len(extra) > 0 {
		cmd.Extra = extra
	}
	return cmd, nil
}
