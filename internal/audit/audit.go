// Package audit implements the engine's best-effort relay mirror. Every
// relayed message produces a small metadata record on NATS, and the raw
// message is optionally forwarded to a Telegram log channel for moderator
// review. Neither path ever blocks or fails a relay.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nashenas/anonbot/internal/engine"
)

// Publisher is the slice of the NATS client the sink needs.
type Publisher interface {
	PublishAudit(data []byte) error
	PublishEngineEvent(data []byte) error
}

// Forwarder is the slice of the Telegram client the sink needs.
type Forwarder interface {
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error
}

// Record is the JSON payload published per relayed message. Content is
// deliberately absent; the log channel forward carries it when enabled.
type Record struct {
	From      int64 `json:"from"`
	MessageID int   `json:"message_id"`
	Ts        int64 `json:"ts"`
}

// Sink mirrors relayed payloads. The zero value is unusable; use New.
type Sink struct {
	nats         Publisher
	forwarder    Forwarder
	logChannelID int64 // 0 disables the Telegram forward
}

// New builds a sink. nats may be nil (no NATS mirror); logChannelID of 0
// disables the Telegram forward.
func New(nats Publisher, forwarder Forwarder, logChannelID int64) *Sink {
	return &Sink{nats: nats, forwarder: forwarder, logChannelID: logChannelID}
}

// Mirror implements engine.AuditSink. Failures are logged and swallowed.
func (s *Sink) Mirror(ctx context.Context, from engine.UserID, p engine.Payload) {
	if s.nats != nil {
		rec := Record{From: int64(from), MessageID: p.MessageID, Ts: time.Now().Unix()}
		data, err := json.Marshal(rec)
		if err == nil {
			if err := s.nats.PublishAudit(data); err != nil {
				log.Printf("[audit] nats publish: %v", err)
			}
		}
	}

	if s.logChannelID != 0 && s.forwarder != nil {
		if err := s.forwarder.ForwardMessage(ctx, s.logChannelID, p.ChatID, p.MessageID); err != nil {
			log.Printf("[audit] log channel forward: %v", err)
		}
	}
}

// Event is a matching lifecycle record for external consumers.
type Event struct {
	Type string `json:"type"` // "matched", "search_timeout", "ended"
	User int64  `json:"user"`
	Ts   int64  `json:"ts"`
}

// PublishEvent mirrors a lifecycle event to NATS, best-effort.
func (s *Sink) PublishEvent(eventType string, user engine.UserID) {
	if s.nats == nil {
		return
	}
	data, err := json.Marshal(Event{Type: eventType, User: int64(user), Ts: time.Now().Unix()})
	if err != nil {
		return
	}
	if err := s.nats.PublishEngineEvent(data); err != nil {
		log.Printf("[audit] event publish: %v", err)
	}
}
