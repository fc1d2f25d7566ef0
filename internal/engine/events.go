package engine

import "context"

// EndReason says why a session was closed, so the caller can render a
// distinct notification for each cause.
type EndReason string

const (
	ReasonEnded      EndReason = "ended"      // user pressed "end chat"
	ReasonCancelled  EndReason = "cancelled"  // user ran /cancel
	ReasonNext       EndReason = "next"       // user asked for the next partner
	ReasonInactivity EndReason = "inactivity" // idle timeout fired
)

// Payload identifies an inbound platform message to be copied to the
// partner. The engine never inspects content; it only routes.
type Payload struct {
	ChatID    int64 // source chat the message arrived in
	MessageID int   // platform message identifier
}

// RelayResult is the outcome of a Relay call.
type RelayResult int

const (
	RelayNoSession RelayResult = iota // sender has no partner; dropped
	RelayThrottled                    // rejected by the anti-spam gate
	RelayDelivered
	RelayDeliveryFailed // state committed, delivery to partner failed
)

// Notifier receives engine events and renders them into user-facing
// messages. Implementations must not call back into the engine from within
// a notification (events are emitted outside the engine lock, so doing so
// is safe but can reorder notifications).
type Notifier interface {
	// Searching: user entered the waiting pool.
	Searching(user UserID)
	// Matched: a session was installed; called once per participant.
	Matched(user UserID)
	// AlreadyChatting: a search request was ignored because the user
	// already holds a session.
	AlreadyChatting(user UserID)
	// SearchTimedOut: the search window elapsed with no partner.
	SearchTimedOut(user UserID)
	// ChatEnded: user's session was closed for the given reason.
	ChatEnded(user UserID, reason EndReason)
	// PartnerDisconnected: the partner closed the session.
	PartnerDisconnected(user UserID)
	// Throttled: a relayed message was rejected by the anti-spam gate.
	Throttled(user UserID)
	// DeliveryFailed: the partner copy could not be delivered.
	DeliveryFailed(user UserID)
}

// Deliverer copies a relayed payload to a recipient with sender identity
// stripped (the platform's copy-not-forward mode).
type Deliverer interface {
	Copy(ctx context.Context, to UserID, p Payload) error
}

// AuditSink mirrors relayed payloads best-effort. Failures are the sink's
// problem; the engine never checks them.
type AuditSink interface {
	Mirror(ctx context.Context, from UserID, p Payload)
}

// NopAuditSink discards everything.
type NopAuditSink struct{}

func (NopAuditSink) Mirror(context.Context, UserID, Payload) {}
