package broadcaster

import (
	"context"
	"time"

	"go.uber.org/zap"

	"orderledger/infra/kafka"
	"orderledger/infra/logging"
	exitwal "orderledger/infra/wal/exit"
	"orderledger/metrics"
)

const (
	DefaultInterval   = 250 * time.Millisecond
	DefaultMaxRetries = 5
)

// Outbox is the delivery state the broadcaster drives.
type Outbox interface {
	ScanPending(fn func(k exitwal.Key, rec exitwal.Record) error) error
	MarkSent(k exitwal.Key) error
	MarkAcked(k exitwal.Key) error
	MarkRetry(k exitwal.Key, maxRetries uint32) (exitwal.State, error)
}

type Config struct {
	Interval   time.Duration
	MaxRetries uint32
}

// Broadcaster relays outbox events to the broker.
type Broadcaster struct {
	outbox    Outbox
	publisher kafka.Publisher
	cfg       Config
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func New(
	outbox Outbox,
	publisher kafka.Publisher,
	cfg Config,
	m *metrics.Metrics,
	log *zap.Logger,
) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Broadcaster{
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		log:       logging.OrNop(log).Named("broadcaster"),
	}
}

// Run relays every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("broadcaster started", zap.Duration("interval", b.cfg.Interval))

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("broadcaster stopped")
			return
		case <-ticker.C:
			if _, err := b.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				b.log.Warn("relay pass failed", zap.Error(err))
			}
		}
	}
}

type pending struct {
	key     exitwal.Key
	payload []byte
}

// RelayOnce makes one delivery attempt for every pending event and
// returns how many were acknowledged.
func (b *Broadcaster) RelayOnce(ctx context.Context) (int, error) {
	var batch []pending
	err := b.outbox.ScanPending(func(k exitwal.Key, rec exitwal.Record) error {
		batch = append(batch, pending{key: k, payload: rec.Payload})
		return nil
	})
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			return acked, err
		}

		// SENT first: a crash after publish resends rather than loses.
		if err := b.outbox.MarkSent(p.key); err != nil {
			return acked, err
		}

		if err := b.publisher.Publish(ctx, []byte(p.key.String()), p.payload); err != nil {
			state, merr := b.outbox.MarkRetry(p.key, b.cfg.MaxRetries)
			if merr != nil {
				return acked, merr
			}
			if state == exitwal.StateFailed {
				b.metrics.OutboxPublished.WithLabelValues("failed").Inc()
				b.log.Error("event delivery failed permanently",
					zap.Stringer("key", p.key), zap.Error(err))
			} else {
				b.metrics.OutboxPublished.WithLabelValues("retry").Inc()
				b.log.Debug("publish failed, will retry",
					zap.Stringer("key", p.key), zap.Error(err))
			}
			continue
		}

		if err := b.outbox.MarkAcked(p.key); err != nil {
			return acked, err
		}
		b.metrics.OutboxPublished.WithLabelValues("ok").Inc()
		acked++
	}
	return acked, nil
}
