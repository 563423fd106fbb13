package chat

import (
	"context"
	"fmt"

	"github.com/saravenpi/parley/internal/models"
)

// Publisher is the real-time side of a send. Send reports false when the
// message could not be handed to the broker.
type Publisher interface {
	Send(models.OutgoingMessage) bool
}

// Poster is the REST side of a send.
type Poster interface {
	SendMessage(ctx context.Context, msg models.OutgoingMessage) error
}

// Deliver publishes out on the real-time channel and falls back to a single
// REST post when that fails. viaREST reports which path was taken.
func Deliver(ctx context.Context, pub Publisher, post Poster, out models.OutgoingMessage) (viaREST bool, err error) {
	if pub != nil && pub.Send(out) {
		return false, nil
	}
	if err := post.SendMessage(ctx, out); err != nil {
		return true, fmt.Errorf("send message: %w", err)
	}
	return true, nil
}
