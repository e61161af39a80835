package statsnet

import (
	"sync"
)

type timing struct {
	name   string
	millis int64
}

// snapshot is the content of the buffer at one flush instant
type snapshot struct {
	counts     map[string]int64
	countOrder []string
	timings    []timing
	gauges     map[string]float64
	gaugeOrder []string
}

func (s snapshot) len() int {
	return len(s.countOrder) + len(s.timings) + len(s.gaugeOrder)
}

func (s snapshot) empty() bool {
	return s.len() == 0
}

// buffer holds the measurements recorded since the last flush.
// Counts and gauges remember the order in which names were first seen so
// payloads are deterministic.
type buffer struct {
	mutex sync.Mutex
	cur   snapshot
}

func newBuffer() *buffer {
	b := &buffer{}
	b.cur = freshSnapshot()
	return b
}

func freshSnapshot() snapshot {
	return snapshot{
		counts: make(map[string]int64),
		gauges: make(map[string]float64),
	}
}

// add sums delta into the named counter
func (b *buffer) add(name string, delta int64) {
	b.mutex.Lock()
	if _, exists := b.cur.counts[name]; !exists {
		b.cur.countOrder = append(b.cur.countOrder, name)
	}
	b.cur.counts[name] += delta
	b.mutex.Unlock()
}

// set overwrites the named gauge
func (b *buffer) set(name string, value float64) {
	b.mutex.Lock()
	if _, exists := b.cur.gauges[name]; !exists {
		b.cur.gaugeOrder = append(b.cur.gaugeOrder, name)
	}
	b.cur.gauges[name] = value
	b.mutex.Unlock()
}

// observe appends a timing, duplicates included
func (b *buffer) observe(name string, millis int64) {
	b.mutex.Lock()
	b.cur.timings = append(b.cur.timings, timing{name: name, millis: millis})
	b.mutex.Unlock()
}

// take returns everything recorded so far and resets the buffer in one step
func (b *buffer) take() snapshot {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	s := b.cur
	b.cur = freshSnapshot()
	return s
}

// size returns the number of entries a flush would currently produce
func (b *buffer) size() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.cur.len()
}
