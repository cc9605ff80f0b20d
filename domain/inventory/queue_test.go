package inventory

import (
	"errors"
	"testing"
)

func lotWithOrders(t *testing.T, tree *Tree, orders ...[2]any) *Lot {
	t.Helper()
	if err := tree.Insert(20260101, "butter", 1000); err != nil {
		t.Fatal(err)
	}
	lot := tree.Search(20260101)
	for _, o := range orders {
		if err := tree.PlaceOrder(lot, o[0].(string), o[1].(int32)); err != nil {
			t.Fatal(err)
		}
	}
	return lot
}

func destinations(lot *Lot) []string {
	var out []string
	for o := lot.Orders().Head(); o != nil; o = o.Next() {
		out = append(out, o.Destination)
	}
	return out
}

func TestOrdersAreFIFO(t *testing.T) {
	tree := NewTree(NewOrderPool(8))
	lot := lotWithOrders(t, tree,
		[2]any{"Cali", int32(10)},
		[2]any{"Pasto", int32(20)},
		[2]any{"Tumaco", int32(30)},
	)
	got := destinations(lot)
	want := []string{"Cali", "Pasto", "Tumaco"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %d = %q, want %q", i, got[i], want[i])
		}
	}
	if lot.Orders().Count() != 3 {
		t.Fatalf("count = %d", lot.Orders().Count())
	}
}

func TestCancelHead(t *testing.T) {
	tree := NewTree(NewOrderPool(8))
	lot := lotWithOrders(t, tree,
		[2]any{"Cali", int32(10)},
		[2]any{"Pasto", int32(20)},
	)
	if err := tree.CancelOrder(lot, "Cali", 10); err != nil {
		t.Fatal(err)
	}
	if got := destinations(lot); len(got) != 1 || got[0] != "Pasto" {
		t.Fatalf("queue after cancel = %v", got)
	}
	if lot.Stock != 980 {
		t.Fatalf("stock = %d, want 980", lot.Stock)
	}
}

func TestCancelTailThenAppend(t *testing.T) {
	tree := NewTree(NewOrderPool(8))
	lot := lotWithOrders(t, tree,
		[2]any{"Cali", int32(10)},
		[2]any{"Pasto", int32(20)},
	)
	if err := tree.CancelOrder(lot, "Pasto", 20); err != nil {
		t.Fatal(err)
	}
	// The tail reference must follow the unlink or this append is lost.
	if err := tree.PlaceOrder(lot, "Tumaco", 5); err != nil {
		t.Fatal(err)
	}
	got := destinations(lot)
	if len(got) != 2 || got[0] != "Cali" || got[1] != "Tumaco" {
		t.Fatalf("queue = %v", got)
	}
}

func TestCancelOnlyElement(t *testing.T) {
	tree := NewTree(NewOrderPool(8))
	lot := lotWithOrders(t, tree, [2]any{"Guapi", int32(20)})
	if err := tree.CancelOrder(lot, "Guapi", 20); err != nil {
		t.Fatal(err)
	}
	if !lot.Orders().Empty() {
		t.Fatal("queue should be empty")
	}
	if err := tree.PlaceOrder(lot, "Guapi", 1); err != nil {
		t.Fatal(err)
	}
	if got := destinations(lot); len(got) != 1 || got[0] != "Guapi" {
		t.Fatalf("queue = %v", got)
	}
}

func TestCancelRequiresExactMatch(t *testing.T) {
	tree := NewTree(NewOrderPool(8))
	lot := lotWithOrders(t, tree, [2]any{"Guapi", int32(20)})

	// same destination, different quantity
	if err := tree.CancelOrder(lot, "Guapi", 19); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
	// same quantity, different destination
	if err := tree.CancelOrder(lot, "Cali", 20); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
	if lot.Orders().Count() != 1 || lot.Stock != 980 {
		t.Fatal("failed cancel mutated the lot")
	}
}

func TestCancelFirstOfDuplicates(t *testing.T) {
	tree := NewTree(NewOrderPool(8))
	lot := lotWithOrders(t, tree,
		[2]any{"Guapi", int32(20)},
		[2]any{"Guapi", int32(20)},
	)
	if err := tree.CancelOrder(lot, "Guapi", 20); err != nil {
		t.Fatal(err)
	}
	if lot.Orders().Count() != 1 {
		t.Fatalf("count = %d, only the first match cancels", lot.Orders().Count())
	}
}
