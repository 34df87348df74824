package reconcile

import "sync/atomic"

// Sequencer numbers reconciliation cycles, starting at 1.
type Sequencer struct{ n atomic.Uint64 }

// Next returns the next cycle number.
func (s *Sequencer) Next() uint64 { return s.n.Add(1) }

// Last returns the most recently issued number, 0 before the first cycle.
func (s *Sequencer) Last() uint64 { return s.n.Load() }
