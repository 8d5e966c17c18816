package sched

import (
	"container/heap"
	"math/rand"

	"marketsim/pkg/ticks"
)

// batch is a run of activities that must execute in the order given,
// although other same-tick work may interleave between them.
type batch struct {
	acts []Activity
}

// bucket holds every batch scheduled for one tick. Single activities are
// one-element batches. Draws are uniform over batches: offering swaps the
// new batch to a random slot and polling always takes the last slot, so any
// batch is equally likely to run next while order inside a batch is kept.
type bucket struct {
	batches []*batch
	rng     *rand.Rand
}

func (b *bucket) offer(bt *batch) {
	b.batches = append(b.batches, bt)
	swap := b.rng.Intn(len(b.batches))
	last := len(b.batches) - 1
	b.batches[last], b.batches[swap] = b.batches[swap], b.batches[last]
}

func (b *bucket) pop() Activity {
	last := len(b.batches) - 1
	bt := b.batches[last]
	b.batches = b.batches[:last]
	act := bt.acts[0]
	bt.acts = bt.acts[1:]
	if len(bt.acts) > 0 {
		b.offer(bt)
	}
	return act
}

func (b *bucket) empty() bool { return len(b.batches) == 0 }

// timeHeap is a min-heap over the ticks that currently have a bucket.
type timeHeap []ticks.Time

func (h timeHeap) Len() int           { return len(h) }
func (h timeHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h timeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timeHeap) Push(x any)        { *h = append(*h, x.(ticks.Time)) }
func (h *timeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// eventQueue is the time-ordered queue of pending activity batches. Ticks
// are strictly ordered; batches within a tick come out in seeded uniform
// random order.
type eventQueue struct {
	buckets map[ticks.Time]*bucket
	times   timeHeap
	size    int
	rng     *rand.Rand
}

func newEventQueue(rng *rand.Rand) *eventQueue {
	return &eventQueue{
		buckets: make(map[ticks.Time]*bucket),
		rng:     rng,
	}
}

func (q *eventQueue) add(t ticks.Time, acts ...Activity) {
	if len(acts) == 0 {
		return
	}
	bk, ok := q.buckets[t]
	if !ok {
		bk = &bucket{rng: q.rng}
		q.buckets[t] = bk
		heap.Push(&q.times, t)
	}
	bt := &batch{acts: append([]Activity(nil), acts...)}
	bk.offer(bt)
	q.size += len(acts)
}

// peekTime returns the earliest scheduled tick. Second return is false when
// the queue is empty.
func (q *eventQueue) peekTime() (ticks.Time, bool) {
	if q.size == 0 {
		return 0, false
	}
	return q.times[0], true
}

// poll removes and returns one activity from the earliest tick.
func (q *eventQueue) poll() (ticks.Time, Activity) {
	t := q.times[0]
	bk := q.buckets[t]
	act := bk.pop()
	q.size--
	if bk.empty() {
		delete(q.buckets, t)
		heap.Pop(&q.times)
	}
	return t, act
}

func (q *eventQueue) len() int { return q.size }
