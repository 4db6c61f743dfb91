package ledger

import (
	"errors"
	"fmt"
	"strings"
)

type Side uint8

const (
	Bid Side = iota
	Ask
)

var ErrInvalidSide = errors.New("ledger: invalid side")

// Valid reports whether s is Bid or Ask.
func (s Side) Valid() bool {
	return s == Bid || s == Ask
}

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// ParseSide accepts bid/buy and ask/sell, case-insensitive.
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "bid", "buy":
		return Bid, nil
	case "ask", "sell":
		return Ask, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, v)
	}
}

// MarshalText encodes a valid side as "bid" or "ask".
func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts anything ParseSide does.
func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Order is a submitted record. It is stored and handed out by value,
// so a copy held by a caller never aliases ledger state.
type Order struct {
	ID     uint64  `json:"id"`
	Side   Side    `json:"side"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
}
