package ir

// Version constants for the rule-set schema and engine.
const (
	// SchemaVersion is the rule-set IR schema version.
	SchemaVersion = "1"

	// EngineVersion is the rulegate engine version.
	EngineVersion = "0.1.0"
)
