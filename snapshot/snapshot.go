package snapshot

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"orderledger/domain/ledger"
)

var ErrNoSnapshot = errors.New("snapshot: no export found")

const (
	filePrefix = "snapshot-"
	fileSuffix = ".bin"
)

// file is the on-disk envelope.
type file struct {
	Created time.Time
	Ledger  ledger.Snapshot
}

// name identifies an export. Stamp orders exports across process runs,
// which all restart their ledgers at id 1; NextID only breaks ties.
type name struct {
	Stamp  int64
	NextID uint64
}

func (n name) String() string {
	return fmt.Sprintf("%s%020d-%020d%s", filePrefix, n.Stamp, n.NextID, fileSuffix)
}

func (n name) after(o name) bool {
	if n.Stamp != o.Stamp {
		return n.Stamp > o.Stamp
	}
	return n.NextID > o.NextID
}

func parseName(s string) (name, bool) {
	if !strings.HasPrefix(s, filePrefix) || !strings.HasSuffix(s, fileSuffix) {
		return name{}, false
	}
	stamp, nextID, ok := strings.Cut(strings.TrimSuffix(strings.TrimPrefix(s, filePrefix), fileSuffix), "-")
	if !ok {
		return name{}, false
	}
	st, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return name{}, false
	}
	id, err := strconv.ParseUint(nextID, 10, 64)
	if err != nil {
		return name{}, false
	}
	return name{Stamp: st, NextID: id}, true
}

// Read decodes one export.
func Read(path string) (ledger.Snapshot, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return ledger.Snapshot{}, time.Time{}, err
	}
	defer f.Close()

	var s file
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return ledger.Snapshot{}, time.Time{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return s.Ledger, s.Created, nil
}

// Latest returns the path of the most recently written export in dir.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoSnapshot
		}
		return "", err
	}

	var (
		best  string
		bestN name
		found bool
	)
	for _, e := range entries {
		n, ok := parseName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		if !found || n.after(bestN) {
			best, bestN, found = e.Name(), n, true
		}
	}
	if !found {
		return "", ErrNoSnapshot
	}
	return filepath.Join(dir, best), nil
}
