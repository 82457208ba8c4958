package ir

// Version constants for the event schema and engine.
const (
	// EventVersion is the event record schema version.
	EventVersion = "1"

	// EngineVersion is the dmap engine version.
	EngineVersion = "0.1.0"
)
