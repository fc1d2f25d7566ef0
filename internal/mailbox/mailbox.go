// Package mailbox manages state for link-based anonymous messaging, backed
// by Redis:
//
//	Key: anon:target:<sender>            Value: link owner's user ID
//	Key: anon:pending:<owner>            Value: list of queued messages (JSON)
//	Key: anon:reply:<owner>:<messageID>  Value: original sender's user ID
//
// The target key remembers whose link a sender opened, so their next
// messages route to that owner. The reply key lets the owner answer a
// delivered message anonymously by replying to it.
package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	targetPrefix  = "anon:target:"
	pendingPrefix = "anon:pending:"
	replyPrefix   = "anon:reply:"

	// TargetTTL is how long an opened link stays active without traffic.
	TargetTTL = 1 * time.Hour

	// ReplyTTL is how long the owner can reply to a delivered message.
	ReplyTTL = 24 * time.Hour

	// MaxPending caps the queue per owner so one spammer cannot grow a
	// list without bound.
	MaxPending = 50
)

// PendingMessage is one queued anonymous message for a link owner.
type PendingMessage struct {
	SenderID int64  `json:"sender_id"`
	Text     string `json:"text"`
	Ts       int64  `json:"ts"`
}

// Store manages mailbox state in Redis.
type Store struct {
	rdb *redis.Client
}

// NewStore creates a mailbox store using the provided Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// SetTarget records that sender is currently messaging owner's link.
func (s *Store) SetTarget(ctx context.Context, sender, owner int64) error {
	key := targetPrefix + strconv.FormatInt(sender, 10)
	if err := s.rdb.Set(ctx, key, owner, TargetTTL).Err(); err != nil {
		return fmt.Errorf("mailbox: set target: %w", err)
	}
	return nil
}

// Target returns the link owner sender is currently messaging, or (0,
// false) if the sender has no active target.
func (s *Store) Target(ctx context.Context, sender int64) (int64, bool, error) {
	key := targetPrefix + strconv.FormatInt(sender, 10)
	owner, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("mailbox: get target: %w", err)
	}
	return owner, true, nil
}

// ClearTarget forgets sender's active link target.
func (s *Store) ClearTarget(ctx context.Context, sender int64) error {
	key := targetPrefix + strconv.FormatInt(sender, 10)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("mailbox: clear target: %w", err)
	}
	return nil
}

// Push queues an anonymous message for owner. The queue is trimmed to
// MaxPending, dropping the oldest entries first.
func (s *Store) Push(ctx context.Context, owner int64, msg PendingMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mailbox: marshal pending: %w", err)
	}

	key := pendingPrefix + strconv.FormatInt(owner, 10)
	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -MaxPending, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mailbox: push pending: %w", err)
	}
	return nil
}

// Pop removes and returns the oldest queued message for owner. The second
// return value is false when the queue is empty.
func (s *Store) Pop(ctx context.Context, owner int64) (PendingMessage, bool, error) {
	key := pendingPrefix + strconv.FormatInt(owner, 10)
	data, err := s.rdb.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingMessage{}, false, nil
	}
	if err != nil {
		return PendingMessage{}, false, fmt.Errorf("mailbox: pop pending: %w", err)
	}

	var msg PendingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return PendingMessage{}, false, fmt.Errorf("mailbox: unmarshal pending: %w", err)
	}
	return msg, true, nil
}

// PendingCount returns how many messages are queued for owner.
func (s *Store) PendingCount(ctx context.Context, owner int64) (int64, error) {
	key := pendingPrefix + strconv.FormatInt(owner, 10)
	n, err := s.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("mailbox: pending count: %w", err)
	}
	return n, nil
}

// SetReplyTarget maps a message the bot delivered into owner's chat back to
// the anonymous sender, so a reply can be routed.
func (s *Store) SetReplyTarget(ctx context.Context, owner int64, messageID int, sender int64) error {
	key := replyKey(owner, messageID)
	if err := s.rdb.Set(ctx, key, sender, ReplyTTL).Err(); err != nil {
		return fmt.Errorf("mailbox: set reply target: %w", err)
	}
	return nil
}

// ReplyTarget resolves the anonymous sender behind a delivered message in
// owner's chat, or (0, false) if unknown or expired.
func (s *Store) ReplyTarget(ctx context.Context, owner int64, messageID int) (int64, bool, error) {
	sender, err := s.rdb.Get(ctx, replyKey(owner, messageID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("mailbox: get reply target: %w", err)
	}
	return sender, true, nil
}

// ClearReplyTarget removes a reply mapping once it has been used, so a
// second reply to the same message cannot be misrouted.
func (s *Store) ClearReplyTarget(ctx context.Context, owner int64, messageID int) error {
	if err := s.rdb.Del(ctx, replyKey(owner, messageID)).Err(); err != nil {
		return fmt.Errorf("mailbox: clear reply target: %w", err)
	}
	return nil
}

func replyKey(owner int64, messageID int) string {
	return fmt.Sprintf("%s%d:%d", replyPrefix, owner, messageID)
}
