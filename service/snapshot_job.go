package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"orderledger/snapshot"
)

// StartSnapshotJob exports the ledger every interval. After a successful
// export it drops journal segments the export covers and ACKED outbox
// records. It stops when ctx is done; the returned channel closes once
// the job has finished its last pass.
func (s *LedgerService) StartSnapshotJob(ctx context.Context, w *snapshot.Writer, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := s.snapshotOnce(ctx, w); err != nil {
					s.log.Warn("snapshot failed", zap.Error(err))
				}
			}
		}
	}()
	return done
}

func (s *LedgerService) snapshotOnce(ctx context.Context, w *snapshot.Writer) error {
	snap, seq, err := s.snapshotAt(ctx)
	if err != nil {
		return err
	}

	path, err := w.Write(snap)
	if err != nil {
		return err
	}
	s.log.Info("snapshot written",
		zap.String("path", path),
		zap.Int("orders", snap.Len()),
		zap.Uint64("journal_seq", seq),
	)

	if s.journal != nil && seq > 0 {
		if n, err := s.journal.TruncateBefore(seq); err != nil {
			s.log.Warn("journal truncate failed", zap.Error(err))
		} else if n > 0 {
			s.log.Debug("journal segments removed", zap.Int("segments", n))
		}
	}

	if s.outbox != nil {
		if n, err := s.outbox.PruneAcked(); err != nil {
			s.log.Warn("outbox prune failed", zap.Error(err))
		} else if n > 0 {
			s.log.Debug("outbox records pruned", zap.Int("records", n))
		}
	}
	return nil
}
