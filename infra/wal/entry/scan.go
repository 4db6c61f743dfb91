package entry

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

type ScanHandler func(*Record) error

// Scan reads every record under dir in seq order and returns the last
// seq seen. It stops at the first corrupt or out-of-order record.
func Scan(dir string, fn ScanHandler) (lastSeq uint64, err error) {
	paths, err := segmentPaths(dir)
	if err != nil {
		return 0, err
	}

	for _, path := range paths {
		lastSeq, err = scanSegment(path, lastSeq, fn)
		if err != nil {
			return lastSeq, fmt.Errorf("%s: %w", path, err)
		}
	}
	return lastSeq, nil
}

func scanSegment(path string, lastSeq uint64, fn ScanHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		rec, err := readRecord(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lastSeq, nil
			}
			return lastSeq, err
		}

		if rec.Seq <= lastSeq {
			return lastSeq, fmt.Errorf("%w: %d after %d", ErrNonMonotonicSeq, rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])

	data := make([]byte, int(l)+4)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])
	if checksum(append(header, payload...)) != crc {
		return nil, ErrCRCMismatch
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: payload,
	}, nil
}
