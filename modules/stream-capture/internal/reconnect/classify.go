package reconnect

import (
	"strings"
	"sync/atomic"
)

// ErrorCategory represents the classification of upstream errors for telemetry.
type ErrorCategory int

const (
	// ErrCategoryNetwork indicates network-related failures (connection, timeout, DNS)
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryCodec indicates codec/stream failures (decode errors, format issues)
	ErrCategoryCodec
	// ErrCategoryAuth indicates authentication/authorization failures
	ErrCategoryAuth
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category.
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

var (
	authKeywords = []string{
		"unauthorized", "401", "403", "forbidden",
		"authentication", "credentials", "password", "username",
	}
	codecKeywords = []string{
		"codec", "decode", "encode", "format", "negotiation", "caps",
		"h264", "h265", "mjpeg", "jpeg", "not negotiated", "no decoder",
		"missing plugin", "boundary",
	}
	networkKeywords = []string{
		"connection", "timeout", "unreachable", "network", "dns", "resolve",
		"socket", "tcp", "udp", "rtsp", "not found", "could not connect",
		"failed to connect", "eof", "refused", "reset by peer",
	}
)

// Classify categorizes an error from its message and optional debug text.
//
// Priority: auth (most specific) → codec → network → unknown. The
// distinction matters operationally: network errors heal with a reconnect,
// codec and auth errors usually need an operator.
func Classify(msg, debug string) ErrorCategory {
	combined := strings.ToLower(msg + " " + debug)
	if strings.TrimSpace(combined) == "" {
		return ErrCategoryUnknown
	}

	switch {
	case containsAny(combined, authKeywords):
		return ErrCategoryAuth
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

// Counters accumulates classified errors. Safe for concurrent use.
type Counters struct {
	network, codec, auth, unknown atomicCounter
}

// Record classifies msg/debug, counts it and returns the category.
func (c *Counters) Record(msg, debug string) ErrorCategory {
	cat := Classify(msg, debug)
	switch cat {
	case ErrCategoryNetwork:
		c.network.add()
	case ErrCategoryCodec:
		c.codec.add()
	case ErrCategoryAuth:
		c.auth.add()
	default:
		c.unknown.add()
	}
	return cat
}

// Snapshot returns the counts per category name.
func (c *Counters) Snapshot() map[string]uint64 {
	return map[string]uint64{
		ErrCategoryNetwork.String(): c.network.load(),
		ErrCategoryCodec.String():   c.codec.load(),
		ErrCategoryAuth.String():    c.auth.load(),
		ErrCategoryUnknown.String(): c.unknown.load(),
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

type atomicCounter struct{ v atomic.Uint64 }

func (a *atomicCounter) add()         { a.v.Add(1) }
func (a *atomicCounter) load() uint64 { return a.v.Load() }
