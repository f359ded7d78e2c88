package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/nexia-labs/nexia/pkg/logger"
)

// Pending lines held for the writer; beyond this the oldest is discarded.
const auditQueueSize = 256

// JSONLAuditSink records one JSON object per line in an append-only file.
// Writes are queued to a single writer goroutine that owns the file handle.
type JSONLAuditSink struct {
	path    string
	file    *os.File
	queue   chan []byte
	done    chan struct{}
	dropped atomic.Int64
	once    sync.Once
}

// NewJSONLAuditSinkAt opens (creating if needed) the audit file at path.
func NewJSONLAuditSinkAt(path string) (*JSONLAuditSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	s := &JSONLAuditSink{
		path:  path,
		file:  f,
		queue: make(chan []byte, auditQueueSize),
		done:  make(chan struct{}),
	}
	go s.drain()
	return s, nil
}

func (s *JSONLAuditSink) Path() string {
	return s.path
}

// Dropped reports how many entries were discarded because the writer fell
// behind.
func (s *JSONLAuditSink) Dropped() int64 {
	return s.dropped.Load()
}

// Write enqueues entry without blocking the command or strategy that
// produced it. When the queue is full the oldest pending line gives way.
func (s *JSONLAuditSink) Write(entry AuditEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry %s: %w", entry.EventID, err)
	}
	line := append(b, '\n')

	for {
		select {
		case s.queue <- line:
			return nil
		default:
		}
		select {
		case <-s.queue:
			s.dropped.Add(1)
		default:
		}
	}
}

// Close flushes queued entries and closes the file. Write must not be called
// after Close.
func (s *JSONLAuditSink) Close() {
	s.once.Do(func() {
		close(s.queue)
		<-s.done
		if n := s.dropped.Load(); n > 0 {
			logger.WarnCF("hooks", "Audit entries dropped", map[string]interface{}{
				"path":    s.path,
				"dropped": n,
			})
		}
	})
}

func (s *JSONLAuditSink) drain() {
	defer close(s.done)
	defer s.file.Close()
	for line := range s.queue {
		if _, err := s.file.Write(line); err != nil {
			logger.ErrorCF("hooks", "Audit write failed", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		}
	}
}
