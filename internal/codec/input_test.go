package codec

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netcode-csp/internal/input"
	"netcode-csp/internal/scene"
)

func TestInputRoundTrip(t *testing.T) {
	cmd := input.NewCommand(input.ButtonForward|input.ButtonJump, 1.25, -0.5).WithID(17)
	cmd.Extra = scene.Variables{"weapon": scene.String("bow")}

	got, err := DecodeInput(EncodeInput(nil, cmd))
	require.NoError(t, err)
	assert.True(t, cmd.Equal(got), "got %+v", got)
}

func TestInputWithoutExtrasDecodesNil(t *testing.T) {
	got, err := DecodeInput(EncodeInput(nil, input.NewCommand(0, 0, 0).WithID(1)))
	require.NoError(t, err)
	assert.Nil(t, got.Extra)
}

func TestDecodeInputIsStrict(t *testing.T) {
	payload := EncodeInput(nil, input.NewCommand(input.ButtonLeft, 0, 0).WithID(3))
	for n := 0; n < len(payload); n++ {
		_, err := DecodeInput(payload[:n])
		assert.True(t, eris.Is(err, ErrMalformed), "prefix of %d bytes", n)
	}
	_, err := DecodeInput(append(payload, 1))
	assert.True(t, eris.Is(err, ErrMalformed))
}
