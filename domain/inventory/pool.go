package inventory

// OrderPool is a fixed-capacity free list for queue elements, so steady
// state enqueue/cancel churn allocates nothing. Get returns nil when the
// pool is exhausted; callers surface that as ErrAllocation.
type OrderPool struct {
	store []*Order
	top   int
}

func NewOrderPool(capacity int) *OrderPool {
	p := &OrderPool{store: make([]*Order, capacity), top: capacity}
	for i := 0; i < capacity; i++ {
		p.store[i] = new(Order)
	}
	return p
}

func (p *OrderPool) Get() *Order {
	if p.top == 0 {
		return nil
	}
	p.top--
	o := p.store[p.top]
	*o = Order{}
	return o
}

func (p *OrderPool) Put(o *Order) {
	if p.top == len(p.store) {
		return
	}
	o.next = nil
	p.store[p.top] = o
	p.top++
}

// Free reports how many orders remain available.
func (p *OrderPool) Free() int { return p.top }
