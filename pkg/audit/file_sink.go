package audit

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/graphrag/pkg/rerr"
)

// FileSink appends one JSON object per line to a file, fsyncing after
// every write so an append is durable before Append returns.
type FileSink struct {
	mu   sync.Mutex
	seq  uint64
	file *os.File
}

// NewFileSink opens (creating if necessary) path for append-only JSONL
// writes.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, rerr.Wrap(err, rerr.Storage, "audit.NewFileSink")
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Append(e Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	e.Sequence = s.seq
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	line, err := json.Marshal(e)
	if err != nil {
		return Event{}, rerr.Wrap(err, rerr.Storage, "audit.FileSink.Append")
	}
	line = append(line, '\n')
	if _, err := s.file.Write(line); err != nil {
		return Event{}, rerr.Wrap(err, rerr.Storage, "audit.FileSink.Append")
	}
	if err := s.file.Sync(); err != nil {
		return Event{}, rerr.Wrap(err, rerr.Storage, "audit.FileSink.Append")
	}
	return e, nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
