// Package archive partitions Slack events into per-team, per-channel,
// per-day append logs under a configured root directory.
package archive

import (
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/slackline/internal/event"
)

// MetaChannel buckets workspace-level events that carry no channel id.
const MetaChannel = "META"

// fallbackDay is the bucket for events whose event_ts is absent or
// unparseable. A fixed instant, not time.Now(): such events collapse into
// one well-known file instead of smearing across days by arrival time.
var fallbackDay = time.Unix(0, 0).UTC()

// Resolve derives the archive path for an event:
// {team}/{channel|"META"}/{YYYY-MM-DD}.jsonl, relative to the archive root.
// Returns ok=false when the document carries no team id; the caller must
// skip archiving in that case.
func Resolve(teamID string, doc event.Document) (string, bool) {
	if teamID == "" || !safeComponent(teamID) {
		return "", false
	}

	channel := doc.Channel()
	if channel == "" || !safeComponent(channel) {
		channel = MetaChannel
	}

	day := dayBucket(doc.EventTS())
	return teamID + "/" + channel + "/" + day + ".jsonl", true
}

// dayBucket converts a Slack event_ts ("1700000000.000100") to a UTC
// calendar-day string. Only the whole-seconds prefix matters.
func dayBucket(eventTS string) string {
	seconds := eventTS
	if i := strings.IndexByte(eventTS, '.'); i >= 0 {
		seconds = eventTS[:i]
	}

	ts, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil {
		return fallbackDay.Format("2006-01-02")
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// safeComponent rejects ids that could escape the archive root. Team and
// channel ids arrive from a signature-verified payload, but they still end
// up in filesystem paths.
func safeComponent(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`)
}
