package models

import "sync/atomic"

// LinkStats counts what happened on one link. Counters are safe to read from any goroutine.
type LinkStats struct {
	Accepted   uint64
	Duplicates uint64
	Corrupt    uint64
	Overflow   uint64
	Fragments  uint64
	Noise      uint64
	Acks       uint64
	Forwarded  uint64
	Dropped    uint64
	Reconnects uint64
}

// Counters is the mutable, concurrently readable form of LinkStats
type Counters struct {
	accepted   atomic.Uint64
	duplicates atomic.Uint64
	corrupt    atomic.Uint64
	overflow   atomic.Uint64
	fragments  atomic.Uint64
	noise      atomic.Uint64
	acks       atomic.Uint64
	forwarded  atomic.Uint64
	dropped    atomic.Uint64
	reconnects atomic.Uint64
}

func (c *Counters) IncAccepted()   { c.accepted.Add(1) }
func (c *Counters) IncDuplicates() { c.duplicates.Add(1) }
func (c *Counters) IncCorrupt()    { c.corrupt.Add(1) }
func (c *Counters) IncOverflow()   { c.overflow.Add(1) }
func (c *Counters) IncFragments()  { c.fragments.Add(1) }
func (c *Counters) IncNoise()      { c.noise.Add(1) }
func (c *Counters) IncAcks()       { c.acks.Add(1) }
func (c *Counters) IncForwarded()  { c.forwarded.Add(1) }
func (c *Counters) IncDropped()    { c.dropped.Add(1) }
func (c *Counters) IncReconnects() { c.reconnects.Add(1) }

// Snapshot copies the current counter values
func (c *Counters) Snapshot() LinkStats {
	return LinkStats{
		Accepted:   c.accepted.Load(),
		Duplicates: c.duplicates.Load(),
		Corrupt:    c.corrupt.Load(),
		Overflow:   c.overflow.Load(),
		Fragments:  c.fragments.Load(),
		Noise:      c.noise.Load(),
		Acks:       c.acks.Load(),
		Forwarded:  c.forwarded.Load(),
		Dropped:    c.dropped.Load(),
		Reconnects: c.reconnects.Load(),
	}
}
