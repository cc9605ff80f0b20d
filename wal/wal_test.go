package wal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func appendDispatch(t *testing.T, w *WAL, expiry int32, dest string, qty int32) {
	t.Helper()
	rec := NewRecord(RecordDispatch)
	rec.Expiry, rec.Destination, rec.Qty = expiry, dest, qty
	if err := w.Append(rec); err != nil {
		t.Fatal(err)
	}
}

func readAll(t *testing.T, dir string) []*Record {
	t.Helper()
	r, err := OpenReader(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var out []*Record
	for r.Next() {
		out = append(out, r.Record())
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}

	ins := NewRecord(RecordInsert)
	ins.Expiry, ins.Product, ins.Stock = 20251115, "Fresa", 50
	if err := w.Append(ins); err != nil {
		t.Fatal(err)
	}
	appendDispatch(t, w, 20251115, "Guapi", 20)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	recs := readAll(t, dir)
	if len(recs) != 2 {
		t.Fatalf("replayed %d records, want 2", len(recs))
	}
	if recs[0].Seq != 1 || recs[0].Type != RecordInsert || recs[0].Product != "Fresa" {
		t.Fatalf("first record = %+v", recs[0])
	}
	if recs[1].Seq != 2 || recs[1].Destination != "Guapi" || recs[1].Qty != 20 {
		t.Fatalf("second record = %+v", recs[1])
	}
}

func TestSequenceResumesAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	appendDispatch(t, w, 20251115, "Guapi", 20)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	w, err = Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	appendDispatch(t, w, 20251201, "Cali", 5)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	recs := readAll(t, dir)
	if len(recs) != 2 || recs[1].Seq != 2 {
		t.Fatalf("records = %d, last seq = %d", len(recs), recs[len(recs)-1].Seq)
	}
}

func TestRotationBySize(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 48})
	if err != nil {
		t.Fatal(err)
	}
	for i := int32(0); i < 5; i++ {
		appendDispatch(t, w, 20251115+i, "Guapi", 20)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadAllIndex(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) < 2 {
		t.Fatalf("%d segments, rotation never happened", len(entries))
	}

	recs := readAll(t, dir)
	if len(recs) != 5 {
		t.Fatalf("replayed %d records across segments, want 5", len(recs))
	}
	for i, rec := range recs {
		if rec.Seq != uint64(i+1) {
			t.Fatalf("record %d has seq %d", i, rec.Seq)
		}
	}
}

func TestResetDiscardsJournal(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 48})
	if err != nil {
		t.Fatal(err)
	}
	for i := int32(0); i < 4; i++ {
		appendDispatch(t, w, 20251115+i, "Guapi", 20)
	}
	if err := w.Reset(); err != nil {
		t.Fatal(err)
	}
	appendDispatch(t, w, 20260101, "Cali", 7)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	recs := readAll(t, dir)
	if len(recs) != 1 {
		t.Fatalf("replayed %d records after reset, want 1", len(recs))
	}
	if recs[0].Seq != 5 || recs[0].Destination != "Cali" {
		t.Fatalf("record = %+v, sequence must keep counting", recs[0])
	}
}

func TestTornTailEndsReplayCleanly(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	appendDispatch(t, w, 20251115, "Guapi", 20)
	appendDispatch(t, w, 20251201, "Cali", 5)
	if err := w.Sync(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, currentName)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-3); err != nil {
		t.Fatal(err)
	}

	recs := readAll(t, dir)
	if len(recs) != 1 {
		t.Fatalf("replayed %d records, torn tail should yield 1", len(recs))
	}
}

func TestReopenTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	appendDispatch(t, w, 20251115, "Guapi", 20)
	appendDispatch(t, w, 20251201, "Cali", 5)
	if err := w.Sync(); err != nil {
		t.Fatal(err)
	}
	// simulate a crash: no Close, tear the last frame
	path := filepath.Join(dir, currentName)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-3); err != nil {
		t.Fatal(err)
	}

	w2, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	appendDispatch(t, w2, 20260101, "Tumaco", 9)
	if err := w2.Close(); err != nil {
		t.Fatal(err)
	}

	recs := readAll(t, dir)
	if len(recs) != 2 {
		t.Fatalf("replayed %d records, want 2", len(recs))
	}
	if recs[1].Seq != 2 || recs[1].Destination != "Tumaco" {
		t.Fatalf("record after recovery = %+v", recs[1])
	}
}

func TestCorruptPayloadDetected(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	appendDispatch(t, w, 20251115, "Guapi", 20)
	appendDispatch(t, w, 20251201, "Cali", 5)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadAllIndex(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %v, err = %v", entries, err)
	}
	path := filepath.Join(dir, entries[0].File)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[frameHeaderSize+2] ^= 0xFF // flip a payload byte of the first frame
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := OpenReader(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for r.Next() {
	}
	if !errors.Is(r.Err(), ErrCRCMismatch) {
		t.Fatalf("err = %v, want ErrCRCMismatch", r.Err())
	}
}

func TestRecordTimestamps(t *testing.T) {
	before := time.Now().UnixNano()
	rec := NewRecord(RecordCancel)
	after := time.Now().UnixNano()
	if rec.Time < before || rec.Time > after {
		t.Fatalf("record time %d outside [%d, %d]", rec.Time, before, after)
	}
}
