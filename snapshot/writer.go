package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"
	"time"

	"orderledger/domain/ledger"
)

type Writer struct {
	Dir string

	mu        sync.Mutex
	lastStamp int64
	now       func() time.Time // time.Now when nil
}

// Write stores s as snapshot-<stamp>-<nextID>.bin and returns the path.
// Stamps from one Writer strictly increase, so no export is overwritten.
// The file appears atomically; a crash leaves at most a stray temp file.
func (w *Writer) Write(s ledger.Snapshot) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", err
	}

	created := w.clock().UTC()
	stamp := created.UnixNano()
	if stamp <= w.lastStamp {
		stamp = w.lastStamp + 1
	}

	tmp, err := os.CreateTemp(w.Dir, ".snapshot-*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	env := file{Created: created, Ledger: s}
	if err := gob.NewEncoder(tmp).Encode(&env); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(w.Dir, name{Stamp: stamp, NextID: s.NextID}.String())
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	w.lastStamp = stamp
	return path, nil
}

func (w *Writer) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now()
}
