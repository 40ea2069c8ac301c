package push

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Tailer watches a server's log file for appended lines and forwards them
// to the hub's ark-log-data channel, and the control-plane's own rotating
// log file to system-log-data. Server log files are tailed on demand:
// callers start/stop tailing in response to start-ark-logs/stop-ark-logs.
// The system log is tailed by TailSystemLog regardless of subscribers.
type Tailer struct {
	logger *zap.Logger
	hub    *Hub

	mu     sync.Mutex
	cancel map[string]context.CancelFunc
}

// NewTailer creates a Tailer publishing onto hub.
func NewTailer(logger *zap.Logger, hub *Hub) *Tailer {
	return &Tailer{logger: logger, hub: hub, cancel: make(map[string]context.CancelFunc)}
}

// TailServerLog begins watching path for appends, publishing each new line
// as serverName's logFileName stream. Idempotent: a second call for the
// same (serverName, logFileName) is a no-op until StopServerLog is called.
func (t *Tailer) TailServerLog(parent context.Context, serverName, logFileName, path string) {
	key := serverName + "\x00" + logFileName

	t.mu.Lock()
	if _, ok := t.cancel[key]; ok {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	t.cancel[key] = cancel
	t.mu.Unlock()

	go t.run(ctx, path, func(line string) {
		t.hub.PublishArkLogLine(serverName, logFileName, line)
	})
}

// StopServerLog stops watching a previously started (serverName,
// logFileName) stream.
func (t *Tailer) StopServerLog(serverName, logFileName string) {
	key := serverName + "\x00" + logFileName
	t.mu.Lock()
	defer t.mu.Unlock()
	if cancel, ok := t.cancel[key]; ok {
		cancel()
		delete(t.cancel, key)
	}
}

// TailSystemLog watches the control-plane's own rotating log file and
// broadcasts every new line on system-log-data. Intended to run for the
// process lifetime, cancelled via ctx.
func (t *Tailer) TailSystemLog(ctx context.Context, path string) {
	go t.run(ctx, path, t.hub.PublishSystemLogLine)
}

// run watches path for write/create events and publishes lines appended
// since the last read position. Starts from the file's current end-of-file
// so a fresh subscriber never replays historical content.
func (t *Tailer) run(ctx context.Context, path string, publish func(line string)) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.logger.Error("failed to create log watcher", zap.String("path", path), zap.Error(err))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		t.logger.Error("failed to watch log directory", zap.String("dir", dir), zap.Error(err))
		return
	}

	offset := currentSize(path)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			offset = t.publishSince(path, offset, publish)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn("log watcher error", zap.String("path", path), zap.Error(err))
		}
	}
}

func currentSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// publishSince reads path from offset to its current end, publishes every
// complete line, and returns the offset of the first byte not yet
// consumed. A trailing partial line (no terminating newline yet) is left
// for the next call so lines are never split across publishes.
func (t *Tailer) publishSince(path string, offset int64, publish func(line string)) int64 {
	f, err := os.Open(path)
	if err != nil {
		return offset
	}
	defer f.Close()

	if size := currentSize(path); size < offset {
		offset = 0 // file was truncated or rotated
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset
	}

	chunk, err := io.ReadAll(f)
	if err != nil {
		return offset
	}

	lastNewline := bytes.LastIndexByte(chunk, '\n')
	if lastNewline < 0 {
		return offset // no complete line yet
	}

	for _, line := range bytes.Split(chunk[:lastNewline], []byte{'\n'}) {
		publish(string(bytes.TrimSuffix(line, []byte{'\r'})))
	}

	return offset + int64(lastNewline) + 1
}
