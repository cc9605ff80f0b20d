package service

import (
	"fmt"

	"coldchain/domain/inventory"
	"coldchain/wal"
)

// Replay applies every journal record in dir to tree, in order, and
// reports how many were applied. It is called on boot after the
// snapshot load, before any new mutation is accepted.
func Replay(dir string, tree *inventory.Tree) (int, error) {
	r, err := wal.OpenReader(dir, nil)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	applied := 0
	for r.Next() {
		rec := r.Record()
		if err := apply(tree, rec); err != nil {
			return applied, fmt.Errorf("service: replay seq %d: %w", rec.Seq, err)
		}
		applied++
	}
	if err := r.Err(); err != nil {
		return applied, fmt.Errorf("service: replay: %w", err)
	}
	return applied, nil
}

func apply(tree *inventory.Tree, rec *wal.Record) error {
	switch rec.Type {
	case wal.RecordInsert:
		return tree.Insert(rec.Expiry, rec.Product, rec.Stock)
	case wal.RecordDispatch:
		lot := tree.Search(rec.Expiry)
		if lot == nil {
			return inventory.ErrLotNotFound
		}
		return tree.PlaceOrder(lot, rec.Destination, rec.Qty)
	case wal.RecordCancel:
		lot := tree.Search(rec.Expiry)
		if lot == nil {
			return inventory.ErrLotNotFound
		}
		return tree.CancelOrder(lot, rec.Destination, rec.Qty)
	case wal.RecordRemove:
		return tree.Delete(rec.Expiry)
	default:
		return fmt.Errorf("unknown record type %d", rec.Type)
	}
}
