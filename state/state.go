package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileName is the tracker file inside the state directory.
const FileName = "conversations.jsonl"

// Tracker remembers which conversations were already turned into a thread.
type Tracker interface {
	AlreadySeen(conversationID string) bool
	MarkSeen(conversationID, messageID string) error
	Snapshot() Snapshot
	Close() error
}

type Snapshot struct {
	Conversations int
}

type MemoryTracker struct {
	mu   sync.RWMutex
	seen map[string]string
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{seen: make(map[string]string)}
}

func (m *MemoryTracker) AlreadySeen(conversationID string) bool {
	if conversationID == "" {
		return false
	}

	m.mu.RLock()
	_, ok := m.seen[conversationID]
	m.mu.RUnlock()
	return ok
}

func (m *MemoryTracker) MarkSeen(conversationID, messageID string) error {
	if conversationID == "" {
		return nil
	}

	m.mu.Lock()
	m.seen[conversationID] = messageID
	m.mu.Unlock()
	return nil
}

func (m *MemoryTracker) Snapshot() Snapshot {
	m.mu.RLock()
	count := len(m.seen)
	m.mu.RUnlock()
	return Snapshot{Conversations: count}
}

func (m *MemoryTracker) Close() error {
	return nil
}

// FileTracker persists exported conversation ids so later runs skip them.
type FileTracker struct {
	*MemoryTracker
	path    string
	writer  *bufio.Writer
	file    *os.File
	writeMu sync.Mutex
}

type fileRecord struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

func NewFileTracker(stateDir string) (*FileTracker, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, fmt.Errorf("state directory is empty")
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	tracker := &FileTracker{
		MemoryTracker: NewMemoryTracker(),
		path:          filepath.Join(stateDir, FileName),
	}

	if err := tracker.load(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(tracker.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open state file for append: %w", err)
	}
	tracker.file = file
	tracker.writer = bufio.NewWriterSize(file, 64*1024)

	return tracker, nil
}

// Path returns the location of the state file.
func (f *FileTracker) Path() string {
	return f.path
}

func (f *FileTracker) load() error {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		var record fileRecord
		if err := json.Unmarshal(text, &record); err != nil {
			return fmt.Errorf("parse state line %d: %w", line, err)
		}
		if record.ConversationID == "" {
			continue
		}

		f.mu.Lock()
		f.seen[record.ConversationID] = record.MessageID
		f.mu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read state file: %w", err)
	}

	return nil
}

func (f *FileTracker) MarkSeen(conversationID, messageID string) error {
	if conversationID == "" {
		return nil
	}

	f.mu.Lock()
	if _, exists := f.seen[conversationID]; exists {
		f.mu.Unlock()
		return nil
	}
	f.seen[conversationID] = messageID
	f.mu.Unlock()

	data, err := json.Marshal(fileRecord{ConversationID: conversationID, MessageID: messageID})
	if err != nil {
		return fmt.Errorf("encode state record: %w", err)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if _, err := f.writer.Write(data); err != nil {
		return fmt.Errorf("write state record: %w", err)
	}
	if err := f.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	return nil
}

// Flush writes any buffered records to the underlying file.
func (f *FileTracker) Flush() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("flush state file: %w", err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("sync state file: %w", err)
	}
	return nil
}

// Close flushes and closes the state file.
func (f *FileTracker) Close() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	var firstErr error
	if err := f.writer.Flush(); err != nil {
		firstErr = fmt.Errorf("flush state file: %w", err)
	}
	if err := f.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync state file: %w", err)
	}
	if err := f.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close state file: %w", err)
	}

	return firstErr
}
