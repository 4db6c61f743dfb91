package main

import (
	"fmt"
	"os"

	"orderledger/domain/ledger"
)

func main() {
	book := ledger.New()

	book.Submit(ledger.Bid, 100.0, 50.0)
	book.Submit(ledger.Bid, 200.0, 49.5)
	book.Submit(ledger.Bid, 150.0, 51.0)

	book.Submit(ledger.Ask, 80.0, 52.0)
	book.Submit(ledger.Ask, 120.0, 53.5)
	book.Submit(ledger.Ask, 90.0, 51.5)

	if _, err := book.WriteTo(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Next Order ID: %d\n", book.NextID())
}
