package inventory

const (
	// MaxNameLen and MaxDestLen are the fixed widths of the persisted
	// string fields. One byte is reserved for the NUL terminator, so the
	// usable length is one less.
	MaxNameLen = 64
	MaxDestLen = 64
)

// Order is a single pending dispatch request resting in a lot's queue.
type Order struct {
	Destination string
	Qty         int32
	next        *Order // FIFO link, owned by the queue
}

// Next returns the following order in the queue, nil at the tail.
func (o *Order) Next() *Order { return o.next }

// OrderQueue is the FIFO of pending dispatches for one lot. A queue is
// owned by exactly one lot; tail is a non-owning reference kept only for
// O(1) append.
type OrderQueue struct {
	head *Order
	tail *Order
}

// Head returns the oldest pending order, nil if the queue is empty.
func (q *OrderQueue) Head() *Order { return q.head }

// Empty reports whether no orders are pending.
func (q *OrderQueue) Empty() bool { return q.head == nil }

// Count walks the queue; there is no cached length.
func (q *OrderQueue) Count() int {
	n := 0
	for o := q.head; o != nil; o = o.next {
		n++
	}
	return n
}

func (q *OrderQueue) enqueue(o *Order) {
	if q.tail != nil {
		q.tail.next = o
	} else {
		q.head = o
	}
	q.tail = o
}

// cancel unlinks and returns the first order matching destination and
// quantity exactly, scanning head to tail. Returns nil when nothing
// matches; the queue is untouched in that case.
func (q *OrderQueue) cancel(destination string, qty int32) *Order {
	var prev *Order
	for cur := q.head; cur != nil; cur = cur.next {
		if cur.Destination != destination || cur.Qty != qty {
			prev = cur
			continue
		}
		if prev == nil {
			q.head = cur.next
			if q.tail == cur {
				q.tail = nil
			}
		} else {
			prev.next = cur.next
			if q.tail == cur {
				q.tail = prev
			}
		}
		cur.next = nil
		return cur
	}
	return nil
}

// release returns every element to the pool and empties the queue. Calling
// it on an empty queue is a no-op, so a queue is never released twice.
func (q *OrderQueue) release(pool *OrderPool) {
	for cur := q.head; cur != nil; {
		nxt := cur.next
		pool.Put(cur)
		cur = nxt
	}
	q.head, q.tail = nil, nil
}
