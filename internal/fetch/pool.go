// Package fetch retrieves shared-file attachments from Slack in the
// background. Fetches are best-effort: no retry, no backoff, no dedup, and
// a failure never affects the webhook response that triggered it (already
// returned by then).
package fetch

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/slackline/internal/archive"
	"github.com/mattjoyce/slackline/internal/events"
	"github.com/mattjoyce/slackline/internal/slack"
)

// FileAPI is the slice of the Slack client the pool needs.
type FileAPI interface {
	FileInfo(ctx context.Context, fileID string) (*slack.FileInfo, error)
	Download(ctx context.Context, privateURL string) (io.ReadCloser, error)
}

type request struct {
	teamID string
	fileID string
}

// Pool runs attachment fetches on a fixed set of workers fed by a bounded
// queue. Bounding both keeps a burst of file_shared events from spawning an
// unbounded number of in-flight downloads.
type Pool struct {
	api    FileAPI
	store  *archive.Store
	ledger *Ledger
	hub    *events.Hub
	logger *slog.Logger

	workers int
	queue   chan request
}

// NewPool creates a Pool with the given worker count and queue depth.
func NewPool(api FileAPI, store *archive.Store, ledger *Ledger, hub *events.Hub, logger *slog.Logger, workers, depth int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if depth <= 0 {
		depth = 64
	}
	return &Pool{
		api:     api,
		store:   store,
		ledger:  ledger,
		hub:     hub,
		logger:  logger,
		workers: workers,
		queue:   make(chan request, depth),
	}
}

// Start launches the workers and blocks until ctx is cancelled and all
// workers have exited. An in-flight download interrupted by cancellation may
// leave a partial attachment file behind; that is accepted.
func (p *Pool) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.run(ctx)
		}()
	}
	wg.Wait()
	p.logger.Info("fetch pool stopped")
}

func (p *Pool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.queue:
			p.process(ctx, req)
		}
	}
}

// Enqueue hands a fetch to the pool without blocking the caller. When the
// queue is full the fetch is dropped with a warning; the event itself is
// already archived, only the attachment side-channel is skipped.
func (p *Pool) Enqueue(teamID, fileID string) bool {
	select {
	case p.queue <- request{teamID: teamID, fileID: fileID}:
		p.hub.Publish(events.TypeFetchQueued, map[string]string{"team_id": teamID, "file_id": fileID})
		return true
	default:
		p.logger.Warn("fetch queue full, dropping attachment fetch",
			"team_id", teamID, "file_id", fileID)
		p.hub.Publish(events.TypeFetchDropped, map[string]string{"team_id": teamID, "file_id": fileID})
		return false
	}
}

// process runs one fetch end to end. All failures are logged and recorded,
// never propagated: a broken fetch must not take the sink down.
func (p *Pool) process(ctx context.Context, req request) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in attachment fetch",
				"team_id", req.teamID, "file_id", req.fileID, "panic", r)
		}
	}()

	logger := p.logger.With("team_id", req.teamID, "file_id", req.fileID)

	attemptID, err := p.ledger.Begin(ctx, req.teamID, req.fileID)
	if err != nil {
		logger.Error("failed to record fetch attempt", "error", err)
		// Ledger trouble should not block the fetch itself.
	}

	bytes, checksum, err := p.fetch(ctx, req)
	if err != nil {
		logger.Error("attachment fetch failed", "error", err)
		if attemptID != "" {
			if lerr := p.ledger.Fail(ctx, attemptID, err.Error()); lerr != nil {
				logger.Error("failed to record fetch failure", "error", lerr)
			}
		}
		p.hub.Publish(events.TypeFetchFailed, map[string]string{
			"team_id": req.teamID, "file_id": req.fileID, "error": err.Error(),
		})
		return
	}

	if attemptID != "" {
		if lerr := p.ledger.Complete(ctx, attemptID, bytes, checksum); lerr != nil {
			logger.Error("failed to record fetch completion", "error", lerr)
		}
	}
	logger.Info("attachment fetched", "bytes", bytes, "checksum", checksum)
	p.hub.Publish(events.TypeFetchComplete, map[string]any{
		"team_id": req.teamID, "file_id": req.fileID, "bytes": bytes,
	})
}

// fetch persists metadata then streams the attachment bytes to disk,
// fingerprinting them with BLAKE3 on the way through.
func (p *Pool) fetch(ctx context.Context, req request) (int64, string, error) {
	info, err := p.api.FileInfo(ctx, req.fileID)
	if err != nil {
		return 0, "", err
	}

	if err := p.store.WriteAttachmentMeta(req.teamID, req.fileID, info.Raw); err != nil {
		return 0, "", err
	}

	body, err := p.api.Download(ctx, info.URLPrivate)
	if err != nil {
		return 0, "", err
	}
	defer body.Close()

	dst, err := p.store.CreateAttachment(req.teamID, req.fileID)
	if err != nil {
		return 0, "", err
	}

	hasher := blake3.New()
	n, err := io.Copy(io.MultiWriter(dst, hasher), body)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, "", err
	}

	return n, hex.EncodeToString(hasher.Sum(nil)), nil
}
