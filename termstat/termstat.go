// Package termstat provides a stats implementation which periodically
// writes the collected counters and gauges to the given writer. It is meant
// for watching an import from the terminal in lieu of an actual collector
// writing to an external tool.
package termstat

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Collector collects stats and prints them to its writer on an interval.
type Collector struct {
	lock    sync.Mutex
	indexes map[string]int
	names   []string
	counts  []int64
	gauges  map[string]float64
	changed bool
	out     writer
	done    chan struct{}
}

type writer interface {
	Write(p []byte) (int, error)
}

// NewCollector initializes a Collector writing to out every interval. Call
// Close to stop the background writer.
func NewCollector(out writer, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ts := &Collector{
		indexes: make(map[string]int),
		gauges:  make(map[string]float64),
		out:     out,
		done:    make(chan struct{}),
	}
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				ts.write()
			case <-ts.done:
				ts.write()
				return
			}
		}
	}()
	return ts
}

// Close writes one final line and stops the background writer.
func (t *Collector) Close() {
	close(t.done)
}

// Count adds value to the named stat at the specified rate.
func (t *Collector) Count(name string, value int64, rate float64, tags ...string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if rate < 1 && rand.Float64() > rate {
		return
	}
	idx, ok := t.indexes[name]
	if !ok {
		idx = len(t.counts)
		t.counts = append(t.counts, 0)
		t.names = append(t.names, name)
		t.indexes[name] = idx
	}
	t.counts[idx] += value
	t.changed = true
}

// Gauge records the current value of the named stat.
func (t *Collector) Gauge(name string, value float64, rate float64, tags ...string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.gauges[name] = value
	t.changed = true
}

func (t *Collector) write() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.changed {
		return
	}
	sb := strings.Builder{}
	for i := range t.counts {
		fmt.Fprintf(&sb, "%s: %d ", t.names[i], t.counts[i])
	}
	for name, v := range t.gauges {
		fmt.Fprintf(&sb, "%s: %.2f ", name, v)
	}
	t.changed = false
	fmt.Fprintf(t.out, "\r%s", sb.String())
}

// Histogram does nothing.
func (t *Collector) Histogram(name string, value float64, rate float64, tags ...string) {}

// Set does nothing.
func (t *Collector) Set(name string, value string, rate float64, tags ...string) {}

// Timing does nothing.
func (t *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {}
