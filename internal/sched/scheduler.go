// Package sched is the discrete-event core: a single logical thread of
// simulated time draining a deterministic (per seed) queue of activities.
// Activities at different ticks run in time order. Activities at the same
// tick run in seeded uniform random order, except that a batch scheduled
// together keeps its internal order. That same-tick randomness is a modeling
// decision, not an accident: the simulated system has no sub-tick ordering
// information, so the simulator must not invent one.
package sched

import (
	"fmt"
	"log/slog"
	"math/rand"

	"marketsim/pkg/ticks"
)

// Scheduler owns the pending-activity queue and the monotonic simulated
// clock. It is not safe for concurrent use; everything in a run executes on
// one goroutine.
type Scheduler struct {
	queue *eventQueue
	now   ticks.Time
}

// New builds a scheduler whose same-tick draws use rng.
func New(rng *rand.Rand) *Scheduler {
	return &Scheduler{
		queue: newEventQueue(rng),
		now:   ticks.TimeZero,
	}
}

// Now returns the current simulated time.
func (s *Scheduler) Now() ticks.Time { return s.now }

// Empty reports whether any activity is still pending.
func (s *Scheduler) Empty() bool { return s.queue.len() == 0 }

// Pending returns the number of queued activities.
func (s *Scheduler) Pending() int { return s.queue.len() }

// ScheduleAt enqueues one activity to run no earlier than t. Scheduling into
// the past (or at Immediate, which is before everything) is a logic bug and
// panics.
func (s *Scheduler) ScheduleAt(t ticks.Time, act Activity) {
	if t.Before(s.now) {
		panic(fmt.Sprintf("sched: activity %q scheduled at %v, now %v", act.Name, t, s.now))
	}
	s.queue.add(t, act)
}

// ScheduleOrderedAt enqueues several activities for tick t with a guaranteed
// relative order among themselves. Other same-tick activities may still
// interleave between them.
func (s *Scheduler) ScheduleOrderedAt(t ticks.Time, acts ...Activity) {
	if t.IsImmediate() {
		panic("sched: ordered batch scheduled at immediate")
	}
	if t.Before(s.now) {
		panic(fmt.Sprintf("sched: ordered batch scheduled at %v, now %v", t, s.now))
	}
	s.queue.add(t, acts...)
}

// ExecuteNow runs the activity synchronously, bypassing the queue. Its
// effects are visible before the caller continues, which is stronger than
// scheduling at the current tick: a same-tick scheduled activity could still
// be drawn after other pending work.
func (s *Scheduler) ExecuteNow(act Activity) {
	act.Run(s.now)
}

// AdvanceTo pops and executes every activity scheduled at or before t,
// advancing the clock to each popped activity's tick as it goes. The clock
// never moves backwards.
func (s *Scheduler) AdvanceTo(t ticks.Time) {
	for {
		head, ok := s.queue.peekTime()
		if !ok || head.After(t) {
			return
		}
		popped, act := s.queue.poll()
		if popped.After(s.now) {
			s.now = popped
		}
		slog.Debug("executing activity", slog.String("activity", act.Name), slog.Int64("t", s.now.Ticks()))
		act.Run(s.now)
	}
}
