// Package messagequeue defines the message queue port for turn lifecycle
// events consumed by external workers.
package messagequeue

import "context"

// Queue publishes messages to named subjects.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Subjects for chat turn lifecycle events.
const (
	SubjectTurnStarted  = "chat.turn.started"
	SubjectTurnFinished = "chat.turn.finished"
)
