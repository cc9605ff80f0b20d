package wal

import "time"

type RecordType uint8

const (
	RecordInsert RecordType = iota + 1
	RecordDispatch
	RecordCancel
	RecordRemove
)

// Record is one journaled mutation. Which fields are meaningful depends
// on the type: inserts carry product and stock, dispatches and cancels
// carry destination and qty. Expiry identifies the lot in every case;
// for dispatches it is the lot the engine selected.
type Record struct {
	Type        RecordType
	Seq         uint64
	Time        int64
	Expiry      int32
	Product     string
	Stock       int32
	Destination string
	Qty         int32
}

// NewRecord stamps a record for appending. Seq is assigned by the WAL.
func NewRecord(t RecordType) *Record {
	return &Record{Type: t, Time: time.Now().UnixNano()}
}
