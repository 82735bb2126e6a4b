package core

import "time"

// FeedMetadata summarises an exported kill feed for upload.
type FeedMetadata struct {
	Role       string
	Node       uint64
	Duration   time.Duration
	Kills      int
	Indicators int
}
