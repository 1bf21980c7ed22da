// Package metrics holds the gateway's in-process counters, surfaced
// through the management stats endpoint.
package metrics

import "sync/atomic"

// Counters is a set of monotonically increasing counters. All methods
// are safe for concurrent use; a nil *Counters is a no-op so callers
// never need to guard their increments.
type Counters struct {
	redactCalls    atomic.Int64
	hydrateCalls   atomic.Int64
	tokensMinted   atomic.Int64
	dictionaryHits atomic.Int64
	nerHits        atomic.Int64
	regexHits      atomic.Int64
	nameHits       atomic.Int64
	upstreamErrors atomic.Int64
	streamEvents   atomic.Int64
}

func New() *Counters { return &Counters{} }

func (c *Counters) RedactCall() {
	if c != nil {
		c.redactCalls.Add(1)
	}
}

func (c *Counters) HydrateCall() {
	if c != nil {
		c.hydrateCalls.Add(1)
	}
}

func (c *Counters) TokensMinted(n int) {
	if c != nil {
		c.tokensMinted.Add(int64(n))
	}
}

// LayerHits records per-layer detection counts from one pipeline run.
func (c *Counters) LayerHits(dictionary, ner, regex, names int) {
	if c == nil {
		return
	}
	c.dictionaryHits.Add(int64(dictionary))
	c.nerHits.Add(int64(ner))
	c.regexHits.Add(int64(regex))
	c.nameHits.Add(int64(names))
}

func (c *Counters) UpstreamError() {
	if c != nil {
		c.upstreamErrors.Add(1)
	}
}

func (c *Counters) StreamEvent() {
	if c != nil {
		c.streamEvents.Add(1)
	}
}

// Snapshot returns the current counter values keyed for the stats
// endpoint.
func (c *Counters) Snapshot() map[string]int64 {
	if c == nil {
		return map[string]int64{}
	}
	return map[string]int64{
		"redactCalls":    c.redactCalls.Load(),
		"hydrateCalls":   c.hydrateCalls.Load(),
		"tokensMinted":   c.tokensMinted.Load(),
		"dictionaryHits": c.dictionaryHits.Load(),
		"nerHits":        c.nerHits.Load(),
		"regexHits":      c.regexHits.Load(),
		"nameHits":       c.nameHits.Load(),
		"upstreamErrors": c.upstreamErrors.Load(),
		"streamEvents":   c.streamEvents.Load(),
	}
}
