package service

import "orderledger/domain/ledger"

type commandType int

const (
	cmdSubmit commandType = iota
	cmdRender
	cmdSnapshot
)

type command struct {
	typ commandType

	// cmdSubmit
	side   ledger.Side
	amount float64
	price  float64

	resp chan result // buffered, the loop never blocks on it
}

type result struct {
	id         uint64
	report     string
	snap       ledger.Snapshot
	journalSeq uint64
	err        error
}
