package book

const (
	// Version is the current version of the order book engine.
	Version = "v1.0.0"

	// SnapshotSchemaVersion is the current snapshot schema version.
	// Increment on backward-incompatible snapshot format changes.
	SnapshotSchemaVersion = 1
)
