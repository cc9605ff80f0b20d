// Package service is the only write entry point into the dispatch
// engine. It coordinates the domain tree, the mutation journal, the
// snapshot codec and the dispatch outbox; callers (and the Kafka
// arrivals consumer) are serialized behind one mutex.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"coldchain/domain/inventory"
	"coldchain/infra/outbox"
	"coldchain/snapshot"
	"coldchain/wal"
)

var ErrInvalidArgument = errors.New("service: invalid argument")

// OrderSnapshot and LotSnapshot are value copies handed to reporting
// callers; they never alias live queue memory.
type OrderSnapshot struct {
	Destination string `json:"destination"`
	Qty         int32  `json:"qty"`
}

type LotSnapshot struct {
	Expiry  int32           `json:"expiry"`
	Product string          `json:"product"`
	Stock   int32           `json:"stock"`
	Orders  []OrderSnapshot `json:"orders"`
}

// LotArrival is one batch-insert input.
type LotArrival struct {
	Expiry  int32
	Product string
	Stock   int32
}

// DispatchEvent is the payload handed to the outbox for broadcasting.
type DispatchEvent struct {
	ID          string `json:"id"`
	Seq         uint64 `json:"seq"`
	Expiry      int32  `json:"expiry"`
	Destination string `json:"destination"`
	Qty         int32  `json:"qty"`
	At          int64  `json:"at"`
}

type InventoryService struct {
	mu     sync.Mutex
	tree   *inventory.Tree
	log    *wal.WAL       // nil disables journaling
	ob     *outbox.Outbox // nil disables dispatch events
	logger *slog.Logger
	seq    uint64 // outbox key sequence
}

func New(tree *inventory.Tree, log *wal.WAL, ob *outbox.Outbox, logger *slog.Logger) *InventoryService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &InventoryService{tree: tree, log: log, ob: ob, logger: logger}
	if ob != nil {
		if seq, err := ob.MaxSeq(); err == nil {
			s.seq = seq
		} else {
			logger.Error("outbox sequence recovery failed", "err", err)
		}
	}
	return s
}

// InsertLot registers a newly received lot. Date validity (range and
// calendar rules) is the caller's responsibility; only structural
// validity is checked here.
func (s *InventoryService) InsertLot(expiry int32, product string, stock int32) error {
	if expiry <= 0 || product == "" || stock < 0 {
		return fmt.Errorf("%w: expiry=%d product=%q stock=%d", ErrInvalidArgument, expiry, product, stock)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.Insert(expiry, product, stock); err != nil {
		return err
	}
	rec := wal.NewRecord(wal.RecordInsert)
	rec.Expiry, rec.Product, rec.Stock = expiry, product, stock
	s.journal(rec)
	s.logger.Info("lot inserted", "expiry", expiry, "product", product, "stock", stock)
	return nil
}

// InsertLots registers a batch of arrivals. Duplicates are skipped and
// counted out; any other failure aborts and reports how many lots made
// it in before the error.
func (s *InventoryService) InsertLots(lots []LotArrival) (int, error) {
	inserted := 0
	for _, l := range lots {
		err := s.InsertLot(l.Expiry, l.Product, l.Stock)
		if errors.Is(err, inventory.ErrDuplicateLot) {
			s.logger.Warn("skipping duplicate lot", "expiry", l.Expiry)
			continue
		}
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// Dispatch queues an outbound order against the lot nearest to expiry
// and returns that lot's date. Stock reservation and enqueue are one
// atomic step under the service lock.
func (s *InventoryService) Dispatch(destination string, qty int32) (int32, error) {
	if destination == "" || qty <= 0 {
		return 0, fmt.Errorf("%w: destination=%q qty=%d", ErrInvalidArgument, destination, qty)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	lot := s.tree.Min()
	if lot == nil {
		return 0, inventory.ErrNoInventory
	}
	if err := s.tree.PlaceOrder(lot, destination, qty); err != nil {
		return 0, err
	}

	s.seq++
	rec := wal.NewRecord(wal.RecordDispatch)
	rec.Expiry, rec.Destination, rec.Qty = lot.Expiry, destination, qty
	s.journal(rec)
	s.emitDispatch(lot.Expiry, destination, qty)
	s.logger.Info("dispatch queued",
		"expiry", lot.Expiry, "destination", destination, "qty", qty, "stock", lot.Stock)
	return lot.Expiry, nil
}

// CancelOrder removes the first order on the given lot matching
// destination and quantity exactly, restoring the reserved stock.
func (s *InventoryService) CancelOrder(expiry int32, destination string, qty int32) error {
	if destination == "" || qty <= 0 {
		return fmt.Errorf("%w: destination=%q qty=%d", ErrInvalidArgument, destination, qty)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	lot := s.tree.Search(expiry)
	if lot == nil {
		return inventory.ErrLotNotFound
	}
	if err := s.tree.CancelOrder(lot, destination, qty); err != nil {
		return err
	}
	rec := wal.NewRecord(wal.RecordCancel)
	rec.Expiry, rec.Destination, rec.Qty = expiry, destination, qty
	s.journal(rec)
	s.logger.Info("order cancelled", "expiry", expiry, "destination", destination, "qty", qty)
	return nil
}

// RemoveLot deletes a whole lot and its pending orders.
func (s *InventoryService) RemoveLot(expiry int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.Delete(expiry); err != nil {
		return err
	}
	rec := wal.NewRecord(wal.RecordRemove)
	rec.Expiry = expiry
	s.journal(rec)
	s.logger.Info("lot removed", "expiry", expiry)
	return nil
}

// Report returns every lot in ascending expiry order, queues included.
func (s *InventoryService) Report() []LotSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LotSnapshot, 0, s.tree.Size())
	s.tree.Ascend(func(l *inventory.Lot) bool {
		snap := LotSnapshot{
			Expiry:  l.Expiry,
			Product: l.Product,
			Stock:   l.Stock,
			Orders:  make([]OrderSnapshot, 0, l.Orders().Count()),
		}
		for o := l.Orders().Head(); o != nil; o = o.Next() {
			snap.Orders = append(snap.Orders, OrderSnapshot{Destination: o.Destination, Qty: o.Qty})
		}
		out = append(out, snap)
		return true
	})
	return out
}

// Count reports how many lots are held.
func (s *InventoryService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Size()
}

// Save checkpoints the tree to path. The journal is reset afterwards:
// the snapshot supersedes it.
func (s *InventoryService) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := snapshot.Save(path, s.tree); err != nil {
		return err
	}
	s.checkpoint()
	s.logger.Info("inventory saved", "path", path, "lots", s.tree.Size())
	return nil
}

// Load replaces in-memory state with the snapshot at path. A missing
// file loads empty inventory; a corrupt file leaves state untouched.
func (s *InventoryService) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := snapshot.Load(path, s.tree); err != nil {
		return err
	}
	s.checkpoint()
	s.logger.Info("inventory loaded", "path", path, "lots", s.tree.Size())
	return nil
}

func (s *InventoryService) Close() error {
	if s.log == nil {
		return nil
	}
	if err := s.log.Sync(); err != nil {
		return err
	}
	return s.log.Close()
}

func (s *InventoryService) journal(rec *wal.Record) {
	if s.log == nil {
		return
	}
	if err := s.log.Append(rec); err != nil {
		s.logger.Error("journal append failed", "type", rec.Type, "err", err)
	}
}

func (s *InventoryService) checkpoint() {
	if s.log == nil {
		return
	}
	if err := s.log.Reset(); err != nil {
		s.logger.Error("journal reset failed", "err", err)
	}
}

func (s *InventoryService) emitDispatch(expiry int32, destination string, qty int32) {
	if s.ob == nil {
		return
	}
	ev := DispatchEvent{
		ID:          uuid.NewString(),
		Seq:         s.seq,
		Expiry:      expiry,
		Destination: destination,
		Qty:         qty,
		At:          time.Now().UnixNano(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("dispatch event encode failed", "err", err)
		return
	}
	if err := s.ob.Put(s.seq, payload); err != nil {
		s.logger.Error("outbox write failed", "seq", s.seq, "err", err)
	}
}
