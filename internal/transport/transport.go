// Package transport defines the boundary between the dispatcher and
// whatever chat network actually carries messages. internal/matrixtransport
// is the production implementation; tests can supply in-memory doubles.
package transport

import (
	"context"

	"github.com/trinitybot/trinity/pkg/models"
)

// EventSource delivers inbound room messages to the host. Run blocks
// until ctx is cancelled or the underlying connection fails fatally.
type EventSource interface {
	Run(ctx context.Context, onEvent func(models.InboundEvent)) error
}

// ActionSink carries outbound actions (responses, reactions) back to
// the chat network. eventID is the triggering inbound event, needed to
// pair a React action with the event it reacts to.
type ActionSink interface {
	Send(ctx context.Context, roomID string, eventID string, actions []models.Action) error
}
