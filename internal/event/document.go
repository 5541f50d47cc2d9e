// Package event models the Slack Events API payload as an opaque document.
//
// Slack event callbacks are dynamically shaped: the sink reads a handful of
// known fields (type, team_id, the nested event's type/channel/event_ts/file)
// and archives everything else untouched. Decoding into a fixed struct would
// drop unknown fields on re-serialization, so the payload stays a generic
// key-value document end to end.
package event

import (
	"encoding/json"
	"fmt"
)

// Event type values the sink branches on.
const (
	TypeURLVerification = "url_verification"
	TypeFileShared      = "file_shared"
)

// Document is a decoded Slack event payload. Unknown fields pass through
// unmodified into the archive.
type Document map[string]any

// Decode parses raw JSON into a Document.
func Decode(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("event payload is not a JSON object")
	}
	return doc, nil
}

// Marshal serializes the document back to a single-line JSON byte slice.
func (d Document) Marshal() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}
	return b, nil
}

// Type returns the top-level "type" field, or "" when absent.
func (d Document) Type() string {
	return d.str("type")
}

// TeamID returns the top-level "team_id" field, or "" when absent.
func (d Document) TeamID() string {
	return d.str("team_id")
}

// Challenge returns the handshake "challenge" field, or "" when absent.
func (d Document) Challenge() string {
	return d.str("challenge")
}

// Inner returns the nested "event" object, or nil when absent or not an object.
func (d Document) Inner() Document {
	if m, ok := d["event"].(map[string]any); ok {
		return Document(m)
	}
	return nil
}

// InnerType returns the nested event's "type" field, or "" when absent.
func (d Document) InnerType() string {
	return d.Inner().str("type")
}

// Channel returns the nested event's "channel" field, or "" when absent.
// Workspace-level events carry no channel.
func (d Document) Channel() string {
	return d.Inner().str("channel")
}

// EventTS returns the nested event's "event_ts" field, or "" when absent.
func (d Document) EventTS() string {
	return d.Inner().str("event_ts")
}

// FileID returns the nested event's "file.id" field, or "" when absent.
func (d Document) FileID() string {
	inner := d.Inner()
	if inner == nil {
		return ""
	}
	if f, ok := inner["file"].(map[string]any); ok {
		return Document(f).str("id")
	}
	return ""
}

func (d Document) str(key string) string {
	if d == nil {
		return ""
	}
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}
