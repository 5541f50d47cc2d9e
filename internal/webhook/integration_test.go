package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/mattjoyce/slackline/internal/archive"
	"github.com/mattjoyce/slackline/internal/events"
	"github.com/mattjoyce/slackline/internal/fetch"
	"github.com/mattjoyce/slackline/internal/signature"
	"github.com/mattjoyce/slackline/internal/slack"
	"github.com/mattjoyce/slackline/internal/storage"
)

// TestFileSharedEndToEnd drives the whole pipeline: a signed file_shared
// delivery returns immediately, and the detached fetch pool persists the
// attachment metadata and bytes shortly after.
func TestFileSharedEndToEnd(t *testing.T) {
	// Fake Slack Web API.
	attachment := "the attachment bytes"
	slackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files.info":
			fmt.Fprintf(w, `{"ok":true,"file":{"id":"F1","url_private":"http://%s/files-pri/F1"}}`, r.Host)
		case "/files-pri/F1":
			io.WriteString(w, attachment)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer slackSrv.Close()

	store, err := archive.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "fetch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	api := slack.NewClient("xoxb-test")
	api.BaseURL = slackSrv.URL

	hub := events.NewHub(50)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	pool := fetch.NewPool(api, store, fetch.NewLedger(db), hub, logger, 2, 8)

	ctx, cancel := context.WithCancel(context.Background())
	poolDone := make(chan struct{})
	go func() { pool.Start(ctx); close(poolDone) }()
	t.Cleanup(func() { cancel(); <-poolDone })

	verifier := signature.New(testSecret, 2*time.Second)
	srv := New(Config{Listen: "127.0.0.1:0"}, verifier, store, pool, hub, logger)
	web := httptest.NewServer(srv.setupRoutes())
	defer web.Close()

	body := []byte(`{"type":"event_callback","team_id":"T1",` +
		`"event":{"type":"file_shared","event_ts":"1700000000.000100","channel":"C1","file":{"id":"F1"}}}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	req, err := http.NewRequest("POST", web.URL+"/slack/events", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-slack-request-timestamp", ts)
	req.Header.Set("x-slack-signature", signature.Version+"="+verifier.Sign(body, ts))

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	// The response must not wait on the download.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("response took %v, should return before fetch completes", elapsed)
	}

	metaPath := filepath.Join(store.Root(), "T1", "FILES", "F1.json")
	dataPath := filepath.Join(store.Root(), "T1", "FILES", "F1")
	deadline := time.Now().Add(5 * time.Second)
	for {
		meta, merr := os.ReadFile(metaPath)
		data, derr := os.ReadFile(dataPath)
		if merr == nil && derr == nil && len(meta) > 0 && string(data) == attachment {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("attachment artifacts not persisted: meta=%v data=%v", merr, derr)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// The triggering event itself was archived too.
	if _, err := os.Stat(filepath.Join(store.Root(), "T1", "C1", "2023-11-14.jsonl")); err != nil {
		t.Errorf("event archive missing: %v", err)
	}
}
