package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"orderledger/config"
	entrywal "orderledger/infra/wal/entry"
	"orderledger/service"
)

// journal prints the submission journal as one line per record.
func main() {
	envFile := flag.String("env", "", "path to .env file (default: ./.env)")
	dir := flag.String("dir", "", "journal directory (default: JOURNAL_DIR)")
	flag.Parse()

	if *dir == "" {
		cfg, err := config.Load(*envFile)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		*dir = cfg.Journal.Dir
	}

	runs, subs := 0, 0
	last, err := entrywal.Scan(*dir, func(rec *entrywal.Record) error {
		ts := time.Unix(0, rec.Time).UTC().Format(time.RFC3339Nano)
		switch rec.Type {
		case entrywal.RecordRunStart:
			runs++
			fmt.Printf("%8d  %s  run   %s\n", rec.Seq, ts, rec.Data)
		case entrywal.RecordSubmit:
			s, err := service.DecodeSubmission(rec.Data)
			if err != nil {
				return fmt.Errorf("seq %d: %w", rec.Seq, err)
			}
			subs++
			fmt.Printf("%8d  %s  %-4s  id=%d amount=%.2f price=%.2f\n",
				rec.Seq, ts, s.Side, s.ID, s.Amount, s.Price)
		default:
			fmt.Printf("%8d  %s  type(%d) %d bytes\n", rec.Seq, ts, rec.Type, len(rec.Data))
		}
		return nil
	})
	fmt.Printf("\n%d runs, %d submissions, last seq %d\n", runs, subs, last)
	if err != nil {
		fmt.Fprintln(os.Stderr, "journal:", err)
		os.Exit(1)
	}
}
