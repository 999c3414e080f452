package predict

import "github.com/rotisserie/eris"

var (
	// ErrUnknownConnection is returned for messages from connections that
	// were never connected or already left.
	ErrUnknownConnection = eris.New("unknown connection")
	// ErrDuplicateConnection is returned when a connection id is reused.
	ErrDuplicateConnection = eris.New("connection already registered")
	// ErrUnknownScene is returned when a scene name was never added.
	ErrUnknownScene = eris.New("unknown scene")
	// ErrDuplicateScene is returned when two scenes share a name.
	ErrDuplicateScene = eris.New("scene already registered")
	// ErrForeignEntity is returned when an entity does not belong to the scene
	// it is registered with.
	ErrForeignEntity = eris.New("entity belongs to another scene")
)
