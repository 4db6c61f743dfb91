package service

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"orderledger/domain/ledger"
)

var ErrMalformedSubmission = errors.New("service: malformed submission payload")

// Submission is the journal payload of one accepted order.
type Submission struct {
	ID     uint64
	Side   ledger.Side
	Amount float64
	Price  float64
}

// Protobuf wire layout:
//
//	1: id     varint
//	2: side   varint
//	3: amount fixed64 (IEEE 754)
//	4: price  fixed64 (IEEE 754)
const (
	fieldID     protowire.Number = 1
	fieldSide   protowire.Number = 2
	fieldAmount protowire.Number = 3
	fieldPrice  protowire.Number = 4
)

func EncodeSubmission(s Submission) []byte {
	b := make([]byte, 0, 32)
	b = protowire.AppendTag(b, fieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, s.ID)
	b = protowire.AppendTag(b, fieldSide, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Side))
	b = protowire.AppendTag(b, fieldAmount, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(s.Amount))
	b = protowire.AppendTag(b, fieldPrice, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(s.Price))
	return b
}

// DecodeSubmission parses EncodeSubmission output. Unknown fields are skipped.
func DecodeSubmission(b []byte) (Submission, error) {
	var s Submission
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Submission{}, malformed(n)
		}
		b = b[n:]

		switch {
		case num == fieldID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Submission{}, malformed(n)
			}
			s.ID = v
			b = b[n:]
		case num == fieldSide && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Submission{}, malformed(n)
			}
			if v > math.MaxUint8 {
				return Submission{}, fmt.Errorf("%w: side %d", ErrMalformedSubmission, v)
			}
			s.Side = ledger.Side(v)
			b = b[n:]
		case (num == fieldAmount || num == fieldPrice) && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return Submission{}, malformed(n)
			}
			if num == fieldAmount {
				s.Amount = math.Float64frombits(v)
			} else {
				s.Price = math.Float64frombits(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Submission{}, malformed(n)
			}
			b = b[n:]
		}
	}

	if !s.Side.Valid() {
		return Submission{}, fmt.Errorf("%w: side %d", ErrMalformedSubmission, uint8(s.Side))
	}
	return s, nil
}

func malformed(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformedSubmission, protowire.ParseError(n))
}
