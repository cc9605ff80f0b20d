package inventory

// Tree is the AVL index over lots, keyed by expiry date. In-order
// traversal yields lots from nearest to farthest expiry, which is the
// dispatch priority order.
type Tree struct {
	root *Lot
	pool *OrderPool
	size int
}

// NewTree constructs an empty index drawing queue elements from pool.
func NewTree(pool *OrderPool) *Tree {
	return &Tree{pool: pool}
}

func (t *Tree) Size() int        { return t.size }
func (t *Tree) Pool() *OrderPool { return t.pool }

// Root exposes the tree structure for the snapshot writer. Callers must
// not mutate through it.
func (t *Tree) Root() *Lot { return t.root }

// Search descends the tree for an exact expiry match.
func (t *Tree) Search(expiry int32) *Lot {
	n := t.root
	for n != nil {
		switch {
		case expiry < n.Expiry:
			n = n.left
		case expiry > n.Expiry:
			n = n.right
		default:
			return n
		}
	}
	return nil
}

// Min returns the lot with the nearest expiry date, nil on an empty tree.
func (t *Tree) Min() *Lot {
	if t.root == nil {
		return nil
	}
	return minLot(t.root)
}

// Ascend walks lots in ascending expiry order until fn returns false.
func (t *Tree) Ascend(fn func(*Lot) bool) {
	ascend(t.root, fn)
}

// Insert adds a new lot. A lot with the same expiry already present is
// rejected with ErrDuplicateLot and the tree is left unchanged.
func (t *Tree) Insert(expiry int32, product string, stock int32) error {
	root, err := t.insert(t.root, expiry, product, stock)
	if err != nil {
		return err
	}
	t.root = root
	t.size++
	return nil
}

// Delete removes the lot with the given expiry, releasing its queue.
func (t *Tree) Delete(expiry int32) error {
	root, err := t.delete(t.root, expiry)
	if err != nil {
		return err
	}
	t.root = root
	t.size--
	return nil
}

// PlaceOrder reserves qty from the lot and enqueues a pending dispatch.
// On any failure nothing is mutated.
func (t *Tree) PlaceOrder(lot *Lot, destination string, qty int32) error {
	if qty > lot.Stock {
		return ErrInsufficientStock
	}
	o := t.pool.Get()
	if o == nil {
		return ErrAllocation
	}
	o.Destination = clampString(destination, MaxDestLen-1)
	o.Qty = qty
	lot.orders.enqueue(o)
	lot.Stock -= qty
	return nil
}

// CancelOrder removes the first order matching destination and quantity
// exactly and restores the reserved stock to the lot.
func (t *Tree) CancelOrder(lot *Lot, destination string, qty int32) error {
	o := lot.orders.cancel(destination, qty)
	if o == nil {
		return ErrOrderNotFound
	}
	lot.Stock += qty
	t.pool.Put(o)
	return nil
}

// Adopt replaces the tree contents with an externally rebuilt root (the
// snapshot loader), releasing everything currently held.
func (t *Tree) Adopt(root *Lot) {
	ReleaseSubtree(t.root, t.pool)
	t.root = root
	t.size = countLots(root)
}

// Clear releases every queue and drops all lots.
func (t *Tree) Clear() {
	ReleaseSubtree(t.root, t.pool)
	t.root = nil
	t.size = 0
}

/******************** Internal helpers ********************/

func (t *Tree) insert(n *Lot, expiry int32, product string, stock int32) (*Lot, error) {
	if n == nil {
		return NewLot(expiry, product, stock), nil
	}
	switch {
	case expiry < n.Expiry:
		left, err := t.insert(n.left, expiry, product, stock)
		if err != nil {
			return n, err
		}
		n.left = left
	case expiry > n.Expiry:
		right, err := t.insert(n.right, expiry, product, stock)
		if err != nil {
			return n, err
		}
		n.right = right
	default:
		return n, ErrDuplicateLot
	}

	n.height = 1 + max32(lotHeight(n.left), lotHeight(n.right))
	b := balanceOf(n)

	switch {
	case b > 1 && expiry < n.left.Expiry: // left-left
		return rotateRight(n), nil
	case b < -1 && expiry > n.right.Expiry: // right-right
		return rotateLeft(n), nil
	case b > 1: // left-right
		n.left = rotateLeft(n.left)
		return rotateRight(n), nil
	case b < -1: // right-left
		n.right = rotateRight(n.right)
		return rotateLeft(n), nil
	}
	return n, nil
}

func (t *Tree) delete(n *Lot, expiry int32) (*Lot, error) {
	if n == nil {
		return nil, ErrLotNotFound
	}
	switch {
	case expiry < n.Expiry:
		left, err := t.delete(n.left, expiry)
		if err != nil {
			return n, err
		}
		n.left = left
	case expiry > n.Expiry:
		right, err := t.delete(n.right, expiry)
		if err != nil {
			return n, err
		}
		n.right = right
	default:
		if n.left == nil || n.right == nil {
			// The queue dies with the lot. A surviving child keeps
			// ownership of its own queue and takes the parent link.
			n.orders.release(t.pool)
			child := n.left
			if child == nil {
				child = n.right
			}
			return child, nil
		}

		// Two children: the in-order successor replaces this lot. Its
		// queue is cloned by value first, so pool exhaustion aborts with
		// the tree untouched.
		succ := minLot(n.right)
		var clone OrderQueue
		for o := succ.orders.head; o != nil; o = o.next {
			c := t.pool.Get()
			if c == nil {
				clone.release(t.pool)
				return n, ErrAllocation
			}
			c.Destination = o.Destination
			c.Qty = o.Qty
			clone.enqueue(c)
		}
		n.orders.release(t.pool)
		n.orders = clone
		n.Expiry = succ.Expiry
		n.Product = succ.Product
		n.Stock = succ.Stock

		right, err := t.delete(n.right, succ.Expiry)
		if err != nil {
			return n, err
		}
		n.right = right
	}

	n.height = 1 + max32(lotHeight(n.left), lotHeight(n.right))
	b := balanceOf(n)

	// Deletion rebalancing keys off the child's balance factor.
	switch {
	case b > 1 && balanceOf(n.left) >= 0: // left-left
		return rotateRight(n), nil
	case b > 1: // left-right
		n.left = rotateLeft(n.left)
		return rotateRight(n), nil
	case b < -1 && balanceOf(n.right) <= 0: // right-right
		return rotateLeft(n), nil
	case b < -1: // right-left
		n.right = rotateRight(n.right)
		return rotateLeft(n), nil
	}
	return n, nil
}

// rotateRight promotes y's left child. Heights are recomputed bottom-up:
// y first, since x's new height depends on it.
func rotateRight(y *Lot) *Lot {
	x := y.left
	y.left = x.right
	x.right = y
	y.height = 1 + max32(lotHeight(y.left), lotHeight(y.right))
	x.height = 1 + max32(lotHeight(x.left), lotHeight(x.right))
	return x
}

func rotateLeft(x *Lot) *Lot {
	y := x.right
	x.right = y.left
	y.left = x
	x.height = 1 + max32(lotHeight(x.left), lotHeight(x.right))
	y.height = 1 + max32(lotHeight(y.left), lotHeight(y.right))
	return y
}

func balanceOf(n *Lot) int32 {
	if n == nil {
		return 0
	}
	return lotHeight(n.left) - lotHeight(n.right)
}

func minLot(n *Lot) *Lot {
	for n.left != nil {
		n = n.left
	}
	return n
}

func ascend(n *Lot, fn func(*Lot) bool) bool {
	if n == nil {
		return true
	}
	if !ascend(n.left, fn) {
		return false
	}
	if !fn(n) {
		return false
	}
	return ascend(n.right, fn)
}

func countLots(n *Lot) int {
	if n == nil {
		return 0
	}
	return 1 + countLots(n.left) + countLots(n.right)
}
