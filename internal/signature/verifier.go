// Package signature implements Slack's v0 request signing scheme.
//
// Every inbound request carries an HMAC-SHA256 digest over
// "v0:<timestamp>:<body>" keyed by the workspace signing secret. The
// timestamp is bound into the digest, so a captured request cannot be
// replayed outside the freshness window even by an attacker who cannot
// forge signatures for new bodies.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Version is the Slack signing scheme version prefix.
const Version = "v0"

var (
	ErrMissingSignature  = errors.New("signature header is required")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrInvalidTimestamp  = errors.New("timestamp is not a valid integer")
	ErrTimestampSkew     = errors.New("timestamp outside allowed skew")
)

// Verifier computes and checks request signatures. The secret is resolved
// once at startup and never refreshed mid-process; rotating it requires a
// restart. Safe for concurrent use: every operation builds a fresh HMAC
// instance rather than sharing a mutable digest across requests.
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
}

// New creates a Verifier keyed by secret with the given freshness bound.
func New(secret string, maxSkew time.Duration) *Verifier {
	if maxSkew <= 0 {
		maxSkew = 2 * time.Second
	}
	return &Verifier{
		secret:  []byte(secret),
		maxSkew: maxSkew,
	}
}

// Sign computes the lowercase hex HMAC-SHA256 digest over
// "v0:<timestamp>:<body>". Deterministic given the key.
func (v *Verifier) Sign(body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(Version + ":" + timestamp + ":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks timestamp freshness then the provided signature header value
// ("v0=<hex>") against the recomputed digest. Timestamp failures are reported
// before signature failures so a stale-but-validly-signed replay is named for
// what it is.
func (v *Verifier) Verify(body []byte, timestamp, provided string, now time.Time) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, timestamp)
	}

	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return ErrTimestampSkew
	}

	if provided == "" {
		return ErrMissingSignature
	}

	expected := Version + "=" + v.Sign(body, timestamp)
	// hmac.Equal is constant-time; string equality would leak a prefix length.
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrSignatureMismatch
	}
	return nil
}

// MaxSkew reports the configured freshness bound.
func (v *Verifier) MaxSkew() time.Duration {
	return v.maxSkew
}
