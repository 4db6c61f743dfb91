package exit

import (
	"errors"
	"testing"
)

func openTestOutbox(t *testing.T, dir string) *Outbox {
	t.Helper()
	o, err := Open(dir)
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	return o
}

func TestOutbox_Lifecycle(t *testing.T) {
	o := openTestOutbox(t, t.TempDir())
	defer o.Close()

	k, err := o.PutNew(7, []byte(`{"id":7}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if k.Run != o.Run() || k.OrderID != 7 {
		t.Fatalf("unexpected key %v", k)
	}

	rec, err := o.Get(k)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.State != StateNew || string(rec.Payload) != `{"id":7}` {
		t.Fatalf("unexpected record %+v", rec)
	}

	if err := o.MarkSent(k); err != nil {
		t.Fatal(err)
	}
	if rec, _ = o.Get(k); rec.State != StateSent || rec.LastAttempt == 0 {
		t.Fatalf("expected SENT with attempt time, got %+v", rec)
	}
	if err := o.MarkAcked(k); err != nil {
		t.Fatal(err)
	}
	if rec, _ = o.Get(k); rec.State != StateAcked {
		t.Fatalf("expected ACKED, got %v", rec.State)
	}
	if string(rec.Payload) != `{"id":7}` {
		t.Fatalf("payload lost on update: %q", rec.Payload)
	}
}

func TestOutbox_MarkRetryFails(t *testing.T) {
	o := openTestOutbox(t, t.TempDir())
	defer o.Close()

	k, _ := o.PutNew(1, nil)
	for i := 1; i <= 3; i++ {
		state, err := o.MarkRetry(k, 3)
		if err != nil {
			t.Fatal(err)
		}
		want := StateNew
		if i == 3 {
			want = StateFailed
		}
		if state != want {
			t.Fatalf("attempt %d: state %v, want %v", i, state, want)
		}
	}

	pending := 0
	_ = o.ScanPending(func(Key, Record) error {
		pending++
		return nil
	})
	if pending != 0 {
		t.Fatalf("failed record must not be pending")
	}
}

func TestOutbox_ScanPendingOrder(t *testing.T) {
	o := openTestOutbox(t, t.TempDir())
	defer o.Close()

	for _, id := range []uint64{3, 1, 12, 2} {
		if _, err := o.PutNew(id, nil); err != nil {
			t.Fatal(err)
		}
	}
	acked := Key{Run: o.Run(), OrderID: 2}
	_ = o.MarkAcked(acked)

	var got []uint64
	if err := o.ScanPending(func(k Key, _ Record) error {
		got = append(got, k.OrderID)
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}

	want := []uint64{1, 3, 12}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestOutbox_RunsDoNotCollide(t *testing.T) {
	dir := t.TempDir()

	o := openTestOutbox(t, dir)
	first, _ := o.PutNew(1, []byte("first run"))
	_ = o.Close()

	o = openTestOutbox(t, dir)
	defer o.Close()
	if o.Run() != first.Run+1 {
		t.Fatalf("expected run %d, got %d", first.Run+1, o.Run())
	}
	second, _ := o.PutNew(1, []byte("second run"))

	r1, err := o.Get(first)
	if err != nil || string(r1.Payload) != "first run" {
		t.Fatalf("first run event overwritten: %q %v", r1.Payload, err)
	}
	r2, _ := o.Get(second)
	if string(r2.Payload) != "second run" {
		t.Fatalf("unexpected second run payload %q", r2.Payload)
	}

	var runs []uint64
	_ = o.ScanPending(func(k Key, _ Record) error {
		runs = append(runs, k.Run)
		return nil
	})
	if len(runs) != 2 || runs[0] != first.Run {
		t.Fatalf("expected older run first, got %v", runs)
	}
}

func TestOutbox_PruneAcked(t *testing.T) {
	o := openTestOutbox(t, t.TempDir())
	defer o.Close()

	k1, _ := o.PutNew(1, nil)
	k2, _ := o.PutNew(2, nil)
	_ = o.MarkAcked(k1)

	n, err := o.PruneAcked()
	if err != nil || n != 1 {
		t.Fatalf("prune: n=%d err=%v", n, err)
	}
	if _, err := o.Get(k1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected acked record removed, got %v", err)
	}
	if _, err := o.Get(k2); err != nil {
		t.Fatalf("pending record must survive prune: %v", err)
	}
}

func TestOutbox_MarkUnknown(t *testing.T) {
	o := openTestOutbox(t, t.TempDir())
	defer o.Close()

	if err := o.MarkSent(Key{Run: o.Run(), OrderID: 99}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
