package book

import (
	"container/heap"
)

// orderHeap is a binary heap of orders with index tracking so arbitrary
// removal stays O(log n). Each of the four partitions owns one, with its own
// ordering and its own index slot on the order.
type orderHeap struct {
	orders []*Order
	less   func(a, b *Order) bool
	slot   func(o *Order) *int
}

func newOrderHeap(less func(a, b *Order) bool, slot func(o *Order) *int) *orderHeap {
	return &orderHeap{less: less, slot: slot}
}

func (h *orderHeap) Len() int           { return len(h.orders) }
func (h *orderHeap) Less(i, j int) bool { return h.less(h.orders[i], h.orders[j]) }

func (h *orderHeap) Swap(i, j int) {
	h.orders[i], h.orders[j] = h.orders[j], h.orders[i]
	*h.slot(h.orders[i]) = i
	*h.slot(h.orders[j]) = j
}

func (h *orderHeap) Push(x any) {
	o := x.(*Order)
	*h.slot(o) = len(h.orders)
	h.orders = append(h.orders, o)
}

func (h *orderHeap) Pop() any {
	old := h.orders
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	h.orders = old[:n-1]
	*h.slot(o) = -1
	return o
}

func (h *orderHeap) push(o *Order) { heap.Push(h, o) }

func (h *orderHeap) pop() *Order { return heap.Pop(h).(*Order) }

// remove takes o out of the heap. o must be present.
func (h *orderHeap) remove(o *Order) { heap.Remove(h, *h.slot(o)) }

func (h *orderHeap) peek() *Order {
	if len(h.orders) == 0 {
		return nil
	}
	return h.orders[0]
}

func (h *orderHeap) empty() bool { return len(h.orders) == 0 }

// snapshot copies the heap contents without disturbing heap order.
func (h *orderHeap) snapshot() []*Order {
	return append([]*Order(nil), h.orders...)
}

func (h *orderHeap) clear() {
	for _, o := range h.orders {
		*h.slot(o) = -1
	}
	h.orders = h.orders[:0]
}

// Orderings. Time priority always runs earliest-first; price priority
// depends on the partition.

func priceAscSeqAsc(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

func priceDescSeqAsc(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Seq < b.Seq
}

func unmatchedSlot(o *Order) *int { return &o.unmatchedIdx }
func matchedSlot(o *Order) *int   { return &o.matchedIdx }
