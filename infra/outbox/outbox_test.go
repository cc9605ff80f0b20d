package outbox

import (
	"testing"
)

func openTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	ob, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ob.Close() })
	return ob
}

func TestPutAndGet(t *testing.T) {
	ob := openTestOutbox(t)
	if err := ob.Put(1, []byte(`{"destination":"Guapi"}`)); err != nil {
		t.Fatal(err)
	}
	rec, err := ob.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != StateNew || rec.Retries != 0 {
		t.Fatalf("record = %+v", rec)
	}
	if string(rec.Payload) != `{"destination":"Guapi"}` {
		t.Fatalf("payload = %q", rec.Payload)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	ob := openTestOutbox(t)
	if err := ob.Put(7, []byte("x")); err != nil {
		t.Fatal(err)
	}

	if err := ob.MarkSent(7); err != nil {
		t.Fatal(err)
	}
	rec, err := ob.Get(7)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != StateSent || rec.Retries != 1 || rec.LastAttempt == 0 {
		t.Fatalf("after MarkSent: %+v", rec)
	}

	// A failed publish goes around again.
	if err := ob.MarkSent(7); err != nil {
		t.Fatal(err)
	}
	rec, _ = ob.Get(7)
	if rec.Retries != 2 {
		t.Fatalf("retries = %d, want 2", rec.Retries)
	}

	if err := ob.MarkAcked(7); err != nil {
		t.Fatal(err)
	}
	rec, _ = ob.Get(7)
	if rec.State != StateAcked || rec.Retries != 2 {
		t.Fatalf("after MarkAcked: %+v", rec)
	}
}

func TestScanPendingSkipsAcked(t *testing.T) {
	ob := openTestOutbox(t)
	for seq := uint64(1); seq <= 3; seq++ {
		if err := ob.Put(seq, []byte{byte(seq)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := ob.MarkAcked(2); err != nil {
		t.Fatal(err)
	}

	var seen []uint64
	err := ob.ScanPending(func(seq uint64, rec Record) error {
		seen = append(seen, seq)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 3 {
		t.Fatalf("pending = %v, want [1 3]", seen)
	}
}

func TestPurgeAcked(t *testing.T) {
	ob := openTestOutbox(t)
	for seq := uint64(1); seq <= 4; seq++ {
		if err := ob.Put(seq, []byte{byte(seq)}); err != nil {
			t.Fatal(err)
		}
	}
	for _, seq := range []uint64{1, 3} {
		if err := ob.MarkAcked(seq); err != nil {
			t.Fatal(err)
		}
	}

	n, err := ob.PurgeAcked()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("purged %d, want 2", n)
	}
	if _, err := ob.Get(1); err == nil {
		t.Fatal("acked record survived purge")
	}
	if _, err := ob.Get(2); err != nil {
		t.Fatalf("pending record lost: %v", err)
	}
}

func TestKeysOrderBySequence(t *testing.T) {
	ob := openTestOutbox(t)
	// lexicographic key order must equal numeric seq order
	for _, seq := range []uint64{100, 2, 30} {
		if err := ob.Put(seq, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	var seen []uint64
	if err := ob.ScanPending(func(seq uint64, rec Record) error {
		seen = append(seen, seq)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 || seen[0] != 2 || seen[1] != 30 || seen[2] != 100 {
		t.Fatalf("scan order = %v", seen)
	}

	max, err := ob.MaxSeq()
	if err != nil {
		t.Fatal(err)
	}
	if max != 100 {
		t.Fatalf("MaxSeq = %d, want 100", max)
	}
}
