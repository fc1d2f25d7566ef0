package engine

import (
	"context"
	"log"

	"github.com/nashenas/anonbot/internal/metrics"
)

// Relay forwards an inbound message from sender to their partner:
//
//  1. No session → drop silently (precondition bug upstream, not a user
//     error this layer reports).
//  2. Anti-spam gate: messages arriving faster than the throttle interval
//     are rejected without touching relay state: no timestamp update, no
//     timer reset, no delivery.
//  3. Mirror to the audit sink, fire-and-forget.
//  4. Copy to the partner with identity stripped; a failure is surfaced to
//     the sender only.
//  5. The pair's inactivity timer is rearmed after any successful throttle
//     pass; activity postpones the timeout, not delivery success.
func (e *Engine) Relay(ctx context.Context, sender UserID, p Payload) RelayResult {
	e.mu.Lock()
	partner, ok := e.sessions.partner(sender)
	if !ok {
		e.mu.Unlock()
		return RelayNoSession
	}

	now := e.now()
	if last, ok := e.lastMessage[sender]; ok && now.Sub(last) < e.cfg.ThrottleInterval {
		e.mu.Unlock()
		metrics.MessagesThrottled.Inc()
		e.notifier.Throttled(sender)
		return RelayThrottled
	}
	e.lastMessage[sender] = now

	key := makePairKey(sender, partner)
	e.idleTimers.arm(idleKey(key), e.cfg.IdleTimeout, func(gen uint64) {
		e.onIdleTimeout(sender, partner, gen)
	})
	e.mu.Unlock()

	e.audit.Mirror(ctx, sender, p)

	if err := e.deliver.Copy(ctx, partner, p); err != nil {
		log.Printf("[engine] relay delivery failed from=%d to=%d: %v", sender, partner, err)
		metrics.DeliveryFailures.Inc()
		e.notifier.DeliveryFailed(sender)
		return RelayDeliveryFailed
	}

	metrics.MessagesRelayed.Inc()
	return RelayDelivered
}
