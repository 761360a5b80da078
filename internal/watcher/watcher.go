// Package watcher polls a request file and reports when its content
// changes.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/unkn0wn-root/reststudio/internal/errdef"
)

const defaultInterval = 500 * time.Millisecond

type Fingerprint struct {
	Mod  time.Time
	Size int64
	Hash string
}

type Options struct {
	Interval time.Duration
	Clock    clock.Clock
}

type Watcher struct {
	path     string
	interval time.Duration
	clock    clock.Clock

	mu      sync.Mutex
	last    Fingerprint
	seen    bool
	missing bool
}

func New(path string, opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Watcher{path: filepath.Clean(path), interval: opts.Interval, clock: opts.Clock}
}

func (w *Watcher) Path() string { return w.path }

// Scan reads the file when its size or modtime moved and reports whether the
// content differs from the last scan. The first successful scan is always a
// change. A missing file is not an error; it reports no change until the
// file comes back.
func (w *Watcher) Scan() ([]byte, bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.mu.Lock()
			w.missing = true
			w.mu.Unlock()
			return nil, false, nil
		}
		return nil, false, errdef.Wrap(errdef.CodeFilesystem, err, "stat %s", w.path)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen && !w.missing && info.ModTime().Equal(w.last.Mod) && info.Size() == w.last.Size {
		return nil, false, nil
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, false, errdef.Wrap(errdef.CodeFilesystem, err, "read %s", w.path)
	}
	next := Fingerprint{Mod: info.ModTime(), Size: int64(len(data)), Hash: hashBytes(data)}
	changed := !w.seen || next.Hash != w.last.Hash
	w.last, w.seen, w.missing = next, true, false
	if !changed {
		return nil, false, nil
	}
	return data, true, nil
}

// Run scans once immediately and then every interval until ctx is done,
// calling onChange with the new content. Scan errors end the loop.
func (w *Watcher) Run(ctx context.Context, onChange func([]byte)) error {
	tick := w.clock.Ticker(w.interval)
	defer tick.Stop()
	for {
		data, changed, err := w.Scan()
		if err != nil {
			return err
		}
		if changed {
			onChange(data)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
