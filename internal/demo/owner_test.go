package demo

import "netcode-csp/internal/net/proto"

// owner is a connection that only carries an id.
type owner string

func (o owner) ID() string { return string(o) }

func (owner) Send(proto.MessageID, []byte) error { return nil }
