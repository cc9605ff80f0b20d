package wal

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrCorruptRecord = errors.New("wal: corrupted record")

type Serializer interface {
	Encode(*Record) ([]byte, error)
	Decode([]byte) (*Record, error)
}

// ProtoSerializer encodes records on the protobuf wire format via
// protowire, so payloads stay readable by any proto tooling without
// generated code.
type ProtoSerializer struct{}

const (
	fieldType        = 1
	fieldSeq         = 2
	fieldTime        = 3
	fieldExpiry      = 4
	fieldProduct     = 5
	fieldStock       = 6
	fieldDestination = 7
	fieldQty         = 8
)

func (ProtoSerializer) Encode(rec *Record) ([]byte, error) {
	b := make([]byte, 0, 64)
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Type))
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, rec.Seq)
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Time))
	b = protowire.AppendTag(b, fieldExpiry, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(rec.Expiry)))
	if rec.Product != "" {
		b = protowire.AppendTag(b, fieldProduct, protowire.BytesType)
		b = protowire.AppendString(b, rec.Product)
	}
	b = protowire.AppendTag(b, fieldStock, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(rec.Stock)))
	if rec.Destination != "" {
		b = protowire.AppendTag(b, fieldDestination, protowire.BytesType)
		b = protowire.AppendString(b, rec.Destination)
	}
	b = protowire.AppendTag(b, fieldQty, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(rec.Qty)))
	return b, nil
}

func (ProtoSerializer) Decode(data []byte) (*Record, error) {
	rec := &Record{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, ErrCorruptRecord
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			data = data[n:]
			switch num {
			case fieldType:
				rec.Type = RecordType(v)
			case fieldSeq:
				rec.Seq = v
			case fieldTime:
				rec.Time = int64(v)
			case fieldExpiry:
				rec.Expiry = int32(uint32(v))
			case fieldStock:
				rec.Stock = int32(uint32(v))
			case fieldQty:
				rec.Qty = int32(uint32(v))
			}
		case protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			data = data[n:]
			switch num {
			case fieldProduct:
				rec.Product = s
			case fieldDestination:
				rec.Destination = s
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			data = data[n:]
		}
	}
	return rec, nil
}
