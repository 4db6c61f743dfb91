package exit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotFound       = errors.New("outbox: record not found")
	errRecordTooShort = errors.New("outbox: invalid record length")
)

// -------------------- Record --------------------

// Record is the delivery state of one order event.
type Record struct {
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary encoding: [state:1][retries:4][lastAttempt:8][payload...]
const recordHeader = 1 + 4 + 8

func encodeRecord(r Record) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < recordHeader {
		return Record{}, errRecordTooShort
	}
	payload := make([]byte, len(b)-recordHeader)
	copy(payload, b[recordHeader:])
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// -------------------- Outbox --------------------

// Key identifies one event: the process run that produced it and the
// order id within that run's ledger.
type Key struct {
	Run     uint64
	OrderID uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.Run, k.OrderID)
}

// Outbox stores order events until the broadcaster has delivered them.
// Every Open starts a new run, so ids reused by a fresh ledger never
// collide with undelivered events of an earlier run.
type Outbox struct {
	db  *pebble.DB
	run uint64
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	run, err := nextRun(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Outbox{db: db, run: run}, nil
}

func nextRun(db *pebble.DB) (uint64, error) {
	var last uint64
	val, closer, err := db.Get([]byte(runKey))
	switch {
	case err == nil:
		if len(val) == 8 {
			last = binary.BigEndian.Uint64(val)
		}
		_ = closer.Close()
	case !errors.Is(err, pebble.ErrNotFound):
		return 0, err
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], last+1)
	if err := db.Set([]byte(runKey), buf[:], pebble.Sync); err != nil {
		return 0, err
	}
	return last + 1, nil
}

// Run is the run number assigned by Open.
func (o *Outbox) Run() uint64 {
	return o.run
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// PutNew records a fresh event for orderID in the current run.
func (o *Outbox) PutNew(orderID uint64, payload []byte) (Key, error) {
	k := Key{Run: o.run, OrderID: orderID}
	rec := Record{State: StateNew, Payload: payload}
	return k, o.db.Set(keyFor(k), encodeRecord(rec), pebble.Sync)
}

func (o *Outbox) MarkSent(k Key) error {
	return o.update(k, func(r *Record) {
		r.State = StateSent
		r.LastAttempt = time.Now().UnixNano()
	})
}

func (o *Outbox) MarkAcked(k Key) error {
	return o.update(k, func(r *Record) {
		r.State = StateAcked
	})
}

// MarkRetry puts a record back to NEW after a failed attempt, or to
// FAILED once retries reaches maxRetries.
func (o *Outbox) MarkRetry(k Key, maxRetries uint32) (State, error) {
	var state State
	err := o.update(k, func(r *Record) {
		r.Retries++
		r.LastAttempt = time.Now().UnixNano()
		if r.Retries >= maxRetries {
			r.State = StateFailed
		} else {
			r.State = StateNew
		}
		state = r.State
	})
	return state, err
}

// Get returns the current record for an event.
func (o *Outbox) Get(k Key) (Record, error) {
	val, closer, err := o.db.Get(keyFor(k))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

func (o *Outbox) update(k Key, fn func(*Record)) error {
	rec, err := o.Get(k)
	if err != nil {
		return err
	}
	fn(&rec)
	return o.db.Set(keyFor(k), encodeRecord(rec), pebble.Sync)
}

// -------------------- Scan --------------------

// ScanByState visits records in the given states, oldest run first and
// in order id order within a run.
func (o *Outbox) ScanByState(
	fn func(k Key, rec Record) error,
	states ...State,
) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if !slices.Contains(states, rec.State) {
			continue
		}

		k, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(k, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// ScanPending visits records that still need a delivery attempt.
// SENT records are included: a crash between send and ack resends them.
func (o *Outbox) ScanPending(fn func(k Key, rec Record) error) error {
	return o.ScanByState(fn, StateNew, StateSent)
}

// PruneAcked deletes every ACKED record and reports how many went.
func (o *Outbox) PruneAcked() (int, error) {
	var keys []Key
	err := o.ScanByState(func(k Key, _ Record) error {
		keys = append(keys, k)
		return nil
	}, StateAcked)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	b := o.db.NewBatch()
	defer b.Close()
	for _, k := range keys {
		if err := b.Delete(keyFor(k), nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// -------------------- Helpers --------------------

const (
	keyPrefix = "event/"
	runKey    = "meta/run"
)

func keyFor(k Key) []byte {
	return []byte(fmt.Sprintf("%s%020d/%020d", keyPrefix, k.Run, k.OrderID))
}

func parseKey(b []byte) (Key, error) {
	var k Key
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d/%d", &k.Run, &k.OrderID)
	return k, err
}
