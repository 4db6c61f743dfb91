package entry

import (
	"encoding/binary"
	"os"
	"sync"
)

const DefaultSegmentSize = 2 * 1024 * 1024

type Config struct {
	Dir         string
	SegmentSize int64
	// SyncEachAppend fsyncs after every record.
	SyncEachAppend bool
}

// WAL is the append-only submission journal. Every Open starts a fresh
// segment; existing segments are never rewritten.
type WAL struct {
	mu sync.Mutex

	dir      string
	segSize  int64
	syncEach bool

	current  *segment
	segIndex int
	lastSeq  uint64
	closed   bool
}

func Open(cfg Config) (*WAL, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = DefaultSegmentSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	paths, err := segmentPaths(cfg.Dir)
	if err != nil {
		return nil, err
	}

	var (
		next    int
		lastSeq uint64
	)
	if len(paths) > 0 {
		idx, err := segmentIndex(paths[len(paths)-1])
		if err != nil {
			return nil, err
		}
		next = idx + 1
	}
	// Resume numbering after the newest non-empty segment.
	for i := len(paths) - 1; i >= 0 && lastSeq == 0; i-- {
		if lastSeq, err = maxSeqInSegment(paths[i]); err != nil {
			return nil, err
		}
	}

	seg, err := openSegment(cfg.Dir, next)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		syncEach: cfg.SyncEachAppend,
		current:  seg,
		segIndex: next,
		lastSeq:  lastSeq,
	}, nil
}

// Append writes one record and returns the seq assigned to it.
func (w *WAL) Append(t RecordType, data []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}

	seq := w.lastSeq + 1
	payloadLen := uint32(len(data))

	buf := make([]byte, headerSize+int(payloadLen)+4)
	buf[0] = byte(t)
	binary.BigEndian.PutUint64(buf[1:9], seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(now()))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], data)

	crc := checksum(buf[:headerSize+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)

	if err := w.current.append(buf); err != nil {
		return 0, err
	}
	w.lastSeq = seq

	if w.syncEach {
		if err := w.current.sync(); err != nil {
			return seq, err
		}
	}
	if w.current.offset >= w.segSize {
		return seq, w.rotate()
	}
	return seq, nil
}

// LastSeq is the seq of the newest record, 0 for an empty journal.
func (w *WAL) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}

func (w *WAL) Dir() string {
	return w.dir
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.current.sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}

// TruncateBefore removes closed segments whose records all have
// seq <= seq. The active segment is always kept.
func (w *WAL) TruncateBefore(seq uint64) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths, err := segmentPaths(w.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range paths {
		if path == w.current.path {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
