// Package watcher polls a database file for external modification. A
// checksum is recorded when watching starts; the save path asks whether
// the file still matches before overwriting it.
package watcher

import (
	"crypto/sha256"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultInterval = 2 * time.Second

// FileWatcher polls one file. It satisfies the watcher interface the
// core save path expects.
type FileWatcher struct {
	log      zerolog.Logger
	interval time.Duration

	mu       sync.Mutex
	path     string
	checksum [sha256.Size]byte
	hasSum   bool
	changed  bool
	stop     chan struct{}
}

// New creates a watcher polling at the given interval; zero means
// DefaultInterval.
func New(log zerolog.Logger, interval time.Duration) *FileWatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &FileWatcher{log: log, interval: interval}
}

// Start begins watching path, recording its current checksum. Any
// previous watch is stopped.
func (w *FileWatcher) Start(path string) {
	w.Stop()

	w.mu.Lock()
	w.path = path
	w.changed = false
	w.checksum, w.hasSum = fileChecksum(path)
	stop := make(chan struct{})
	w.stop = stop
	w.mu.Unlock()

	go w.poll(path, stop)
}

// Stop ends the current watch.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
	w.mu.Unlock()
}

func (w *FileWatcher) poll(path string, stop chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sum, ok := fileChecksum(path)
			w.mu.Lock()
			if ok != w.hasSum || (ok && sum != w.checksum) {
				if !w.changed {
					w.log.Warn().Str("path", path).Msg("database file changed on disk")
				}
				w.changed = true
			}
			w.mu.Unlock()
		}
	}
}

// HasSameFileChecksum re-reads the file and compares against the
// checksum recorded at Start.
func (w *FileWatcher) HasSameFileChecksum() bool {
	w.mu.Lock()
	path := w.path
	recorded := w.checksum
	hasSum := w.hasSum
	changed := w.changed
	w.mu.Unlock()

	if changed {
		return false
	}
	sum, ok := fileChecksum(path)
	if ok != hasSum {
		return false
	}
	return !ok || sum == recorded
}

func fileChecksum(path string) ([sha256.Size]byte, bool) {
	var sum [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, false
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, false
	}
	copy(sum[:], h.Sum(nil))
	return sum, true
}
