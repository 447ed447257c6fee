// Package bus implements the request/reply replication bus over RabbitMQ,
// its message envelope, and the recognized topic routes, using the
// confirm-select + mandatory-flag publish convention.
package bus

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Envelope is the metadata every message on the bus carries, independent
// of its route-specific body.
type Envelope struct {
	CorrelationID string
	AppID         string
	ContentType   string
	Timestamp     time.Time
	ReplyTo       string
}

// NewCorrelationID builds a correlation id as `prefix + random` — the bus
// never reuses a caller-supplied id as-is, so replies can never collide
// across two independently-initiated requests that happen to share a
// prefix.
func NewCorrelationID(prefix string) string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return prefix + hex.EncodeToString(buf[:])
}

// NewEnvelope builds the standard envelope for an outbound request.
func NewEnvelope(appID, prefix, replyTo string, now time.Time) Envelope {
	return Envelope{
		CorrelationID: NewCorrelationID(prefix),
		AppID:         appID,
		ContentType:   "application/json",
		Timestamp:     now,
		ReplyTo:       replyTo,
	}
}

// Reply builds the envelope for a reply to req; its correlation id must
// equal the request's.
func (req Envelope) Reply(appID string, now time.Time) Envelope {
	return Envelope{
		CorrelationID: req.CorrelationID,
		AppID:         appID,
		ContentType:   "application/json",
		Timestamp:     now,
	}
}
