package webhook

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/mattjoyce/slackline/internal/event"
	"github.com/mattjoyce/slackline/internal/signature"
)

// Slack delivery headers.
const (
	headerSignature = "x-slack-signature"
	headerTimestamp = "x-slack-request-timestamp"
)

// admit runs the admission pipeline in fixed order: timestamp parse,
// freshness, signature, content-type. Each step short-circuits; no event
// interpretation happens before every step passes. On rejection the response
// has already been written and ok is false.
func (s *Server) admit(w http.ResponseWriter, r *http.Request) (event.Document, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		// Transport trouble, not an authentication failure. Answer 200 so
		// Slack does not hammer us with redeliveries of a request we could
		// not even read.
		s.logger.Error("failed to read request body", "error", err)
		w.WriteHeader(http.StatusOK)
		return nil, false
	}

	timestamp := r.Header.Get(headerTimestamp)
	provided := r.Header.Get(headerSignature)

	if err := s.verifier.Verify(body, timestamp, provided, time.Now()); err != nil {
		switch {
		case errors.Is(err, signature.ErrInvalidTimestamp),
			errors.Is(err, signature.ErrTimestampSkew):
			s.logger.Warn("request rejected: stale or invalid timestamp",
				"timestamp", timestamp, "remote_addr", r.RemoteAddr)
			respondText(w, http.StatusForbidden, msgTimestampMismatch)
		default:
			s.logger.Warn("request rejected: bad signature",
				"remote_addr", r.RemoteAddr)
			respondText(w, http.StatusForbidden, msgSignatureMismatch)
		}
		return nil, false
	}

	if ct := r.Header.Get("Content-Type"); ct != "application/json" {
		s.logger.Warn("request rejected: unexpected content type", "content_type", ct)
		respondText(w, http.StatusUnsupportedMediaType, msgContentType)
		return nil, false
	}

	doc, err := event.Decode(body)
	if err != nil {
		// The request authenticated but the payload is garbage. Log and
		// swallow with 200: a redelivery of the same bytes cannot succeed.
		s.logger.Error("failed to decode admitted payload", "error", err)
		w.WriteHeader(http.StatusOK)
		return nil, false
	}

	return doc, true
}

func respondText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
