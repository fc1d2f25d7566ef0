package bot

import (
	"context"

	"github.com/nashenas/anonbot/internal/engine"
)

// Deliverer copies relayed messages to the partner via copyMessage, which
// strips the sender's identity from the delivered copy.
type Deliverer struct {
	api API
}

// NewDeliverer creates the engine.Deliverer used for partner relay.
func NewDeliverer(api API) *Deliverer {
	return &Deliverer{api: api}
}

// Copy implements engine.Deliverer.
func (d *Deliverer) Copy(ctx context.Context, to engine.UserID, p engine.Payload) error {
	return d.api.CopyMessage(ctx, int64(to), p.ChatID, p.MessageID)
}
