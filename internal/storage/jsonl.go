package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"farmLedger/internal/model"
)

// JsonlEventLog appends audit events to a JSONL file, assigning each a uuid.
// Emit never fails the emitting action; write errors are logged and dropped.
type JsonlEventLog struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

func NewJsonlEventLog(path string, logger *zap.Logger) *JsonlEventLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JsonlEventLog{path: path, logger: logger}
}

func (s *JsonlEventLog) Emit(event model.Event) {
	event.ID = uuid.NewString()
	if err := s.append(event); err != nil {
		s.logger.Error("append audit event", zap.String("kind", event.Kind), zap.Error(err))
	}
}

func (s *JsonlEventLog) append(event model.Event) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush event log: %w", err)
	}
	return nil
}
