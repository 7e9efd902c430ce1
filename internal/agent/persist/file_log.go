package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileLog appends blocks as JSON lines to a local file. It is the fallback
// destination when the remote sink is absent or failing.
type FileLog struct {
	path string
	mu   sync.Mutex
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

func (f *FileLog) Path() string { return f.path }

func (f *FileLog) Append(ctx context.Context, b Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	if _, err := file.Write(line); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return file.Close()
}

var _ Sink = (*FileLog)(nil)
