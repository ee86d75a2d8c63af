package heartlink

// Version information for the heartlink module.
const (
	// Version is the current version of the heartlink module.
	Version = "0.1.0"

	// ProtocolVersion identifies the PING/PONG wire format. Peers with a
	// different value cannot talk to each other.
	ProtocolVersion = 1
)
