// internal/storage/storage.go
package storage

import "github.com/killindicator/extension/pkg/core"

// Backend is the interface all kill feed storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(info *core.SessionInfo) error
	EndSession() error

	// Event recording
	RecordKill(e *core.KillEvent) error
	RecordIndicator(e *core.IndicatorEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the feed server.
type Uploadable interface {
	ExportedFilePath() string
	ExportMetadata() core.FeedMetadata
}
