package entry

import (
	"errors"
	"hash/crc32"
	"time"
)

type RecordType uint8

const (
	// RecordRunStart opens a ledger lifetime; its payload is the run id.
	RecordRunStart RecordType = iota + 1
	// RecordSubmit carries one accepted submission.
	RecordSubmit
)

func (t RecordType) String() string {
	switch t {
	case RecordRunStart:
		return "RUN_START"
	case RecordSubmit:
		return "SUBMIT"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrCRCMismatch     = errors.New("journal: crc mismatch")
	ErrNonMonotonicSeq = errors.New("journal: non-monotonic seq")
	ErrClosed          = errors.New("journal: closed")
)

// Record is an immutable journal entry. Seq is assigned by the journal
// and keeps increasing across process runs.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
const headerSize = 1 + 8 + 8 + 4

func checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

func now() int64 {
	return time.Now().UnixNano()
}
