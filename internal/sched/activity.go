package sched

import (
	"marketsim/pkg/ticks"
)

// Activity is one unit of simulated work. The Name only feeds logging and
// queue dumps; Run receives the scheduler's clock at execution time.
type Activity struct {
	Name string
	Run  func(now ticks.Time)
}
