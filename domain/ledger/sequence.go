package ledger

// Sequence issues strictly increasing identifiers starting at 1.
// The zero value is ready to use. It is not safe for concurrent use;
// its owner serializes calls.
type Sequence struct {
	issued uint64
}

// Next returns the current identifier and advances the counter.
func (s *Sequence) Next() uint64 {
	s.issued++
	return s.issued
}

// Peek returns the identifier the next call to Next will return.
func (s *Sequence) Peek() uint64 {
	return s.issued + 1
}
