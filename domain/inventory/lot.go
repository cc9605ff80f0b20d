package inventory

// Lot is one expiry-dated batch of a single product. Expiry is the tree
// key and immutable once inserted; delete and reinsert to re-key. The lot
// exclusively owns its queue and its child subtrees.
type Lot struct {
	Expiry  int32 // YYYYMMDD
	Product string
	Stock   int32 // available stock, never negative

	orders OrderQueue
	left   *Lot
	right  *Lot
	height int32
}

// NewLot builds a detached lot node. Used by the snapshot loader; regular
// insertion goes through Tree.Insert.
func NewLot(expiry int32, product string, stock int32) *Lot {
	return &Lot{
		Expiry:  expiry,
		Product: clampString(product, MaxNameLen-1),
		Stock:   stock,
		height:  1,
	}
}

func (l *Lot) Orders() *OrderQueue { return &l.orders }
func (l *Lot) Left() *Lot          { return l.left }
func (l *Lot) Right() *Lot         { return l.right }
func (l *Lot) Height() int32       { return l.height }

// AttachOrder appends a persisted order to the lot's queue without
// touching stock. Used by the snapshot loader; live dispatches go through
// Tree.PlaceOrder.
func (l *Lot) AttachOrder(pool *OrderPool, destination string, qty int32) error {
	o := pool.Get()
	if o == nil {
		return ErrAllocation
	}
	o.Destination = clampString(destination, MaxDestLen-1)
	o.Qty = qty
	l.orders.enqueue(o)
	return nil
}

// LinkChildren wires a rebuilt lot's subtrees and recomputes its height.
func (l *Lot) LinkChildren(left, right *Lot) {
	l.left, l.right = left, right
	l.height = 1 + max32(lotHeight(left), lotHeight(right))
}

// ReleaseOrders returns the lot's queue to the pool, leaving it empty.
func (l *Lot) ReleaseOrders(pool *OrderPool) {
	l.orders.release(pool)
}

// ReleaseSubtree returns every queue under n to the pool, children first.
// The nodes themselves are left to the garbage collector.
func ReleaseSubtree(n *Lot, pool *OrderPool) {
	if n == nil {
		return
	}
	ReleaseSubtree(n.left, pool)
	ReleaseSubtree(n.right, pool)
	n.orders.release(pool)
}

func lotHeight(n *Lot) int32 {
	if n == nil {
		return 0
	}
	return n.height
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func clampString(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
