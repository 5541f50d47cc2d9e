package webhook

// Config holds webhook server configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string

	// APIKey guards the observability routes (/events, /healthz) when set.
	// The event route is guarded by the Slack signature instead.
	APIKey string
}

// AttachmentQueuer hands a shared-file fetch to the background pool.
// Implementations must not block: the webhook response cannot wait on a
// slow network fetch.
type AttachmentQueuer interface {
	Enqueue(teamID, fileID string) bool
}

// HealthResponse is the JSON body of /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ArchivedTotal int64  `json:"archived_total"`
	FetchedTotal  int64  `json:"fetched_total"`
}

// Gate rejection bodies, sent as plain text. Slack treats any non-2xx as a
// delivery failure and redelivers with backoff, so these fire only for
// requests that failed authentication outright.
const (
	msgTimestampMismatch = "timestamp mismatch"
	msgSignatureMismatch = "signature mismatch"
	msgContentType       = "content-type must be application/json"
)

// maxBodySize caps inbound event payloads. Slack events are small; 1MB is
// generous headroom.
const maxBodySize = 1 << 20
