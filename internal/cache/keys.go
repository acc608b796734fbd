package cache

import (
	"fmt"
	"time"
)

const (
	DuplicateKeyPrefix = "dup:%s:%d:%s"
	VelocityKeyPrefix  = "vel:%s:%s"
	FlagKeyPrefix      = "%s:%s:%s:%s"
	InboxKeyPrefix     = "notifications:inbox:%s"
	UserChannelPrefix  = "notifications:user:%s"
	CursorKeyPrefix    = "stream:cursor:%s:%s"
	RateLimitKeyPrefix = "ratelimit:%s:%s"
)

const (
	DuplicateWindow = 300 * time.Second
	DuplicateBucket = 30 * time.Second
	VelocityWindow  = 60 * time.Second
	InboxMaxLen     = 200
)

// DuplicateKey buckets a content hash per actor into 30 second slots.
func DuplicateKey(actorID string, at time.Time, hash string) string {
	return fmt.Sprintf(DuplicateKeyPrefix, actorID, at.Unix()/int64(DuplicateBucket/time.Second), hash)
}

// VelocityKey counts an actor's writes of one subject type.
func VelocityKey(actorID, subjectType string) string {
	return fmt.Sprintf(VelocityKeyPrefix, actorID, subjectType)
}

// FlagKey is the ephemeral restriction flag for one mode, user and scope.
func FlagKey(prefix, mode, userID, scope string) string {
	return fmt.Sprintf(FlagKeyPrefix, prefix, mode, userID, scope)
}

// CursorKey holds the last drained entry id of one consumer on one stream.
func CursorKey(stream, consumer string) string {
	return fmt.Sprintf(CursorKeyPrefix, stream, consumer)
}

// InboxKey is the capped per-user notification list.
func InboxKey(userID string) string {
	return fmt.Sprintf(InboxKeyPrefix, userID)
}

// UserChannel is the pub/sub channel for one user's notifications.
func UserChannel(userID string) string {
	return fmt.Sprintf(UserChannelPrefix, userID)
}

// RateLimitKey counts one subject's hits on a rate limited resource.
func RateLimitKey(resource, subject string) string {
	return fmt.Sprintf(RateLimitKeyPrefix, resource, subject)
}
