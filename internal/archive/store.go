package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattjoyce/slackline/internal/event"
)

// filesDir holds attachment artifacts inside each team's tree.
const filesDir = "FILES"

// Store appends events and attachment artifacts under a root directory.
//
// Appends to the same relative path are serialized by a per-path mutex so
// concurrent webhook deliveries cannot interleave partial lines. Appends to
// different paths proceed in parallel. No deduplication: platform redelivery
// of the same event produces duplicate lines.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Store rooted at root.
func NewStore(root string) (*Store, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, fmt.Errorf("archive root is empty")
	}
	return &Store{
		root:  filepath.Clean(trimmed),
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Root reports the archive root directory.
func (s *Store) Root() string {
	return s.root
}

// Append serializes doc to one JSON line and appends it to relPath under the
// root, creating parent directories as needed. Existing content is never
// truncated or reordered.
func (s *Store) Append(relPath string, doc event.Document) error {
	line, err := doc.Marshal()
	if err != nil {
		return err
	}

	lock := s.pathLock(relPath)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(s.root, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open archive file %q: %w", relPath, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append event to %q: %w", relPath, err)
	}
	return nil
}

// WriteAttachmentMeta persists an attachment metadata document to
// {team}/FILES/{fileID}.json, replacing any previous copy.
func (s *Store) WriteAttachmentMeta(teamID, fileID string, meta []byte) error {
	path, err := s.attachmentPath(teamID, fileID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create attachment directory: %w", err)
	}
	if err := os.WriteFile(path+".json", meta, 0o644); err != nil {
		return fmt.Errorf("write attachment metadata: %w", err)
	}
	return nil
}

// CreateAttachment opens {team}/FILES/{fileID} for writing so callers can
// stream attachment bytes without buffering the whole payload.
func (s *Store) CreateAttachment(teamID, fileID string) (io.WriteCloser, error) {
	path, err := s.attachmentPath(teamID, fileID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create attachment directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create attachment file: %w", err)
	}
	return f, nil
}

func (s *Store) attachmentPath(teamID, fileID string) (string, error) {
	if !safeComponent(teamID) {
		return "", fmt.Errorf("team id %q is not a valid path component", teamID)
	}
	if !safeComponent(fileID) {
		return "", fmt.Errorf("file id %q is not a valid path component", fileID)
	}
	return filepath.Join(s.root, teamID, filesDir, fileID), nil
}

// pathLock returns the mutex guarding relPath, creating it on first use.
// Lock entries are never removed; the path set is bounded by teams x
// channels x days actually seen, which stays small for this workload.
func (s *Store) pathLock(relPath string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[relPath]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[relPath] = lock
	}
	return lock
}
