// Package channels bridges external chat platforms onto the
// conversation pipeline.
package channels

import (
	"context"
)

// Submitter accepts inbound messages for a topic. Implemented by
// pipeline.Pipeline.
type Submitter interface {
	Submit(ctx context.Context, topicID, text, senderID string)
}

// Channel defines the interface for chat platform adapters.
type Channel interface {
	// Name returns the channel name (e.g. "slack").
	Name() string
	// Start starts the channel listener. Blocks until ctx is done.
	Start(ctx context.Context) error
	// Stop stops the channel listener.
	Stop() error
}
