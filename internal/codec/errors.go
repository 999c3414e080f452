package codec

import "github.com/rotisserie/eris"

var (
	// ErrMalformed is returned for truncated or structurally invalid payloads.
	ErrMalformed = eris.New("malformed payload")
	// ErrSchemaMismatch is returned when a snapshot disagrees with the
	// attribute kinds or component types of the objects it targets.
	ErrSchemaMismatch = eris.New("snapshot does not match local schema")
)
