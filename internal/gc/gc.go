// Package gc implements the mark-sweep collector over an object.Heap.
package gc

import (
	"strconv"
	"time"

	"krait/internal/object"
	"krait/internal/trace"
)

// DefaultThreshold is the minimum number of allocations between automatic cycles.
const DefaultThreshold = 4096

// Roots enumerates the mutator's root set.
type Roots interface {
	EachRoot(mark func(object.Value))
}

// DeleteHook is called for every object about to be reclaimed.
type DeleteHook func(v object.Value, o *object.Object)

// Stats summarises the collector state.
type Stats struct {
	Collections int  `msgpack:"collections" json:"collections"`
	Freed       int  `msgpack:"freed" json:"freed"`
	LastFreed   int  `msgpack:"last_freed" json:"last_freed"`
	Survivors   int  `msgpack:"survivors" json:"survivors"`
	Threshold   int  `msgpack:"threshold" json:"threshold"`
	Enabled     bool `msgpack:"enabled" json:"enabled"`
}

// Collector owns the collection policy of one heap.
type Collector struct {
	heap     *object.Heap
	roots    Roots
	OnDelete DeleteHook
	Tracer   trace.Tracer

	min       int
	threshold int
	locks     int
	enabled   bool
	running   bool

	stats Stats
	work  []object.Value
}

func New(heap *object.Heap, roots Roots, threshold int) *Collector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Collector{
		heap:      heap,
		roots:     roots,
		Tracer:    trace.Nop,
		min:       threshold,
		threshold: threshold,
		enabled:   true,
	}
}

// Lock suppresses automatic collection until the matching Unlock.
func (c *Collector) Lock() { c.locks++ }

func (c *Collector) Unlock() {
	if c.locks == 0 {
		panic("gc: unbalanced Unlock")
	}
	c.locks--
}

func (c *Collector) Locked() bool { return c.locks > 0 }

func (c *Collector) SetEnabled(on bool) { c.enabled = on }
func (c *Collector) Enabled() bool      { return c.enabled }

// MaybeCollect runs a cycle if enough objects were allocated since the last
// one and collection is neither disabled nor locked.
func (c *Collector) MaybeCollect() int {
	if !c.enabled || c.locks > 0 || c.running || c.heap.Recent() < c.threshold {
		return 0
	}
	return c.Collect()
}

// Collect runs a full mark-sweep cycle and returns the number of freed objects.
func (c *Collector) Collect() int {
	if c.running {
		return 0
	}
	c.running = true
	defer func() { c.running = false }()

	start := time.Now()
	c.mark()
	freed := c.sweep()

	survivors := c.heap.Live()
	c.threshold = max(c.min, 2*survivors)
	c.heap.ResetRecent()

	c.stats.Collections++
	c.stats.Freed += freed
	c.stats.LastFreed = freed
	c.stats.Survivors = survivors

	trace.Point(c.Tracer, trace.ScopeHeap, "gc", "", map[string]string{
		"freed":     strconv.Itoa(freed),
		"survivors": strconv.Itoa(survivors),
		"threshold": strconv.Itoa(c.threshold),
		"took":      time.Since(start).String(),
	})
	return freed
}

func (c *Collector) push(v object.Value) {
	if !v.IsHeap() {
		return
	}
	o := c.heap.Get(v)
	if o == nil || o.Marked() {
		return
	}
	o.SetMarked(true)
	c.work = append(c.work, v)
}

func (c *Collector) mark() {
	if c.roots != nil {
		c.roots.EachRoot(c.push)
	}
	// закреплённые объекты не собираются, но их содержимое живо
	c.heap.EachPinned(c.push)
	for len(c.work) > 0 {
		v := c.work[len(c.work)-1]
		c.work = c.work[:len(c.work)-1]
		object.Children(c.heap.Get(v), c.push)
	}
	c.work = c.work[:0]
}

func (c *Collector) sweep() int {
	var dead []object.Value
	c.heap.Each(func(v object.Value, o *object.Object) {
		if o.Marked() {
			o.SetMarked(false)
			return
		}
		if o.Traced() {
			dead = append(dead, v)
		}
	})
	// хук видит объекты ещё целыми: сначала все вызовы, потом освобождение
	if c.OnDelete != nil {
		for _, v := range dead {
			c.OnDelete(v, c.heap.Get(v))
		}
	}
	for _, v := range dead {
		if err := c.heap.Free(v); err != nil {
			panic(err)
		}
	}
	return len(dead)
}

func (c *Collector) Stats() Stats {
	s := c.stats
	s.Threshold = c.threshold
	s.Enabled = c.enabled
	return s
}
