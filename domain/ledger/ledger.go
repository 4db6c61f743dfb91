package ledger

import "fmt"

// Ledger accumulates bid and ask interest in arrival order.
//
// It is append-only: there is no matching, cancellation or lookup by id.
// A Ledger is owned by a single caller at a time; see service.LedgerService
// for the serialized wrapper used by the servers.
type Ledger struct {
	bids []Order
	asks []Order
	seq  Sequence
}

// New returns an empty ledger whose first identifier is 1.
func New() *Ledger {
	return &Ledger{}
}

// Submit records one order and returns its identifier.
// Amount and price are stored as given.
func (l *Ledger) Submit(side Side, amount, price float64) uint64 {
	if !side.Valid() {
		panic(fmt.Sprintf("ledger: submit with %v", side))
	}

	o := Order{
		ID:     l.seq.Next(),
		Side:   side,
		Amount: amount,
		Price:  price,
	}

	if side == Bid {
		l.bids = append(l.bids, o)
	} else {
		l.asks = append(l.asks, o)
	}
	return o.ID
}

// ---- queries ----

// Bids returns a copy of the bid side in submission order.
func (l *Ledger) Bids() []Order {
	return clone(l.bids)
}

// Asks returns a copy of the ask side in submission order.
func (l *Ledger) Asks() []Order {
	return clone(l.asks)
}

// Len is the number of submissions accepted so far.
func (l *Ledger) Len() int {
	return len(l.bids) + len(l.asks)
}

// NextID reports the identifier the next submission will receive.
func (l *Ledger) NextID() uint64 {
	return l.seq.Peek()
}

// Snapshot is a point-in-time copy of a ledger.
type Snapshot struct {
	Bids   []Order `json:"bids"`
	Asks   []Order `json:"asks"`
	NextID uint64  `json:"next_id"`
}

// Snapshot copies both sides and the next identifier.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Bids:   l.Bids(),
		Asks:   l.Asks(),
		NextID: l.NextID(),
	}
}

// Len is the number of orders captured by the snapshot.
func (s Snapshot) Len() int {
	return len(s.Bids) + len(s.Asks)
}

func clone(in []Order) []Order {
	out := make([]Order, len(in))
	copy(out, in)
	return out
}
