package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orderledger/domain/ledger"
	"orderledger/infra/logging"
	"orderledger/infra/wal/entry"
	exitwal "orderledger/infra/wal/exit"
	"orderledger/metrics"
)

var ErrStopped = errors.New("service: ledger loop stopped")

const defaultBuffer = 1024

// Journal is the part of the submission journal the service writes to.
type Journal interface {
	Append(t entry.RecordType, data []byte) (uint64, error)
	LastSeq() uint64
	TruncateBefore(seq uint64) (int, error)
}

// Outbox is the part of the event outbox the service writes to.
type Outbox interface {
	PutNew(orderID uint64, payload []byte) (exitwal.Key, error)
	PruneAcked() (int, error)
}

type Options struct {
	Journal Journal  // optional
	Outbox  Outbox   // optional
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Buffer  int
	// RunID tags journal and outbox records of this ledger lifetime.
	// A random uuid is used when empty.
	RunID string
}

// LedgerService owns one ledger. All access goes through Run.
type LedgerService struct {
	book    *ledger.Ledger
	journal Journal
	outbox  Outbox
	metrics *metrics.Metrics
	log     *zap.Logger
	runID   string

	cmds chan command
	done chan struct{}
}

func New(opts Options) *LedgerService {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}

	return &LedgerService{
		book:    ledger.New(),
		journal: opts.Journal,
		outbox:  opts.Outbox,
		metrics: opts.Metrics,
		log:     logging.OrNop(opts.Logger).Named("ledger"),
		runID:   opts.RunID,
		cmds:    make(chan command, opts.Buffer),
		done:    make(chan struct{}),
	}
}

func (s *LedgerService) RunID() string {
	return s.runID
}

// Run is the single owner of the ledger. It marks the start of the run
// in the journal and then serves commands until ctx is done.
func (s *LedgerService) Run(ctx context.Context) error {
	defer close(s.done)

	if s.journal != nil {
		if _, err := s.journal.Append(entry.RecordRunStart, []byte(s.runID)); err != nil {
			return fmt.Errorf("journal run start: %w", err)
		}
	}
	s.log.Info("ledger loop started", zap.String("run_id", s.runID))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("ledger loop stopped",
				zap.Int("orders", s.book.Len()),
				zap.Uint64("next_id", s.book.NextID()),
			)
			return nil
		case cmd := <-s.cmds:
			cmd.resp <- s.handle(cmd)
		}
	}
}

func (s *LedgerService) handle(cmd command) result {
	switch cmd.typ {
	case cmdSubmit:
		return s.submit(cmd.side, cmd.amount, cmd.price)
	case cmdRender:
		s.metrics.Renders.Inc()
		return result{report: s.book.Render()}
	case cmdSnapshot:
		r := result{snap: s.book.Snapshot()}
		if s.journal != nil {
			r.journalSeq = s.journal.LastSeq()
		}
		return r
	default:
		return result{err: fmt.Errorf("service: unknown command %d", cmd.typ)}
	}
}

func (s *LedgerService) submit(side ledger.Side, amount, price float64) result {
	start := time.Now()
	defer func() {
		s.metrics.SubmitDuration.Observe(time.Since(start).Seconds())
	}()

	id := s.book.NextID()

	if s.journal != nil {
		payload := EncodeSubmission(Submission{ID: id, Side: side, Amount: amount, Price: price})
		if _, err := s.journal.Append(entry.RecordSubmit, payload); err != nil {
			s.log.Error("journal append failed", zap.Uint64("id", id), zap.Error(err))
			return result{err: fmt.Errorf("journal append: %w", err)}
		}
	}

	got := s.book.Submit(side, amount, price)
	order := ledger.Order{ID: got, Side: side, Amount: amount, Price: price}

	if s.outbox != nil {
		s.enqueue(order)
	}

	s.metrics.OrdersSubmitted.WithLabelValues(side.String()).Inc()
	s.metrics.OrdersResting.WithLabelValues(side.String()).Inc()

	s.log.Debug("order accepted",
		zap.Uint64("id", got),
		zap.Stringer("side", side),
		zap.Float64("amount", amount),
		zap.Float64("price", price),
	)
	return result{id: got}
}

// enqueue records the accepted event for the broadcaster. The order is
// already in the ledger, so a failure here is logged and not returned.
func (s *LedgerService) enqueue(o ledger.Order) {
	payload, err := newAcceptedEvent(s.runID, o).Marshal()
	if err != nil {
		s.log.Error("encode event", zap.Uint64("id", o.ID), zap.Error(err))
		return
	}
	if _, err := s.outbox.PutNew(o.ID, payload); err != nil {
		s.log.Error("outbox put failed", zap.Uint64("id", o.ID), zap.Error(err))
	}
}

// Submit records an order and returns its id. Amount and price are
// stored as given.
func (s *LedgerService) Submit(ctx context.Context, side ledger.Side, amount, price float64) (uint64, error) {
	if !side.Valid() {
		return 0, fmt.Errorf("%w: %d", ledger.ErrInvalidSide, uint8(side))
	}
	r, err := s.do(ctx, command{typ: cmdSubmit, side: side, amount: amount, price: price})
	if err != nil {
		return 0, err
	}
	return r.id, nil
}

// Render returns the text report of the current contents.
func (s *LedgerService) Render(ctx context.Context) (string, error) {
	r, err := s.do(ctx, command{typ: cmdRender})
	return r.report, err
}

// Snapshot returns a copy of the current contents.
func (s *LedgerService) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	r, err := s.do(ctx, command{typ: cmdSnapshot})
	return r.snap, err
}

func (s *LedgerService) snapshotAt(ctx context.Context) (ledger.Snapshot, uint64, error) {
	r, err := s.do(ctx, command{typ: cmdSnapshot})
	return r.snap, r.journalSeq, err
}

func (s *LedgerService) do(ctx context.Context, cmd command) (result, error) {
	cmd.resp = make(chan result, 1)

	select {
	case s.cmds <- cmd:
	case <-s.done:
		return result{}, ErrStopped
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	// Once queued, the command is answered unless the loop exits first.
	select {
	case r := <-cmd.resp:
		return r, r.err
	case <-s.done:
		select {
		case r := <-cmd.resp:
			return r, r.err
		default:
			return result{}, ErrStopped
		}
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}
