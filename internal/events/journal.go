package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const journalWindow = 512

// JournalPublisher appends events as JSON lines and keeps the newest ones in
// memory for listing.
type JournalPublisher struct {
	mu       sync.RWMutex
	dataFile string
	recent   []Event
}

// NewJournalPublisher opens (or creates) the journal at path and restores the
// most recent events from it.
func NewJournalPublisher(path string) (*JournalPublisher, error) {
	if path == "" {
		path = "transactions.log"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	j := &JournalPublisher{dataFile: path}
	if err := j.loadFromDisk(); err != nil {
		return nil, err
	}
	return j, nil
}

// Publish appends evt to the journal.
func (j *JournalPublisher) Publish(_ context.Context, evt Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开交易日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化交易事件失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入交易日志失败: %w", err)
	}

	j.recent = append([]Event{evt}, j.recent...)
	if len(j.recent) > journalWindow {
		j.recent = j.recent[:journalWindow]
	}
	return nil
}

// Latest returns up to limit events, newest first.
func (j *JournalPublisher) Latest(limit int) []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if limit <= 0 || limit > len(j.recent) {
		limit = len(j.recent)
	}
	out := make([]Event, limit)
	copy(out, j.recent[:limit])
	return out
}

// Close is a no-op; the file is opened per write.
func (j *JournalPublisher) Close() error { return nil }

func (j *JournalPublisher) loadFromDisk() error {
	file, err := os.OpenFile(j.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取交易日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []Event
	for scanner.Scan() {
		var evt Event
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			continue
		}
		restored = append([]Event{evt}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析交易日志失败: %w", err)
	}
	if len(restored) > journalWindow {
		restored = restored[:journalWindow]
	}
	j.recent = restored
	return nil
}
