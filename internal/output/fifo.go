package output

import "github.com/mackeh/ebpfmonitor/internal/monitor"

// fifo is a bounded per-monitor queue. push drops the oldest buffered record
// once capacity is reached rather than blocking the drain goroutine or
// rejecting the new one — a live system favors recent data over old.
type fifo struct {
	items    []monitor.Record
	capacity int
	dropped  uint64
}

func newFIFO(capacity int) *fifo {
	if capacity <= 0 {
		capacity = 1
	}
	return &fifo{capacity: capacity}
}

func (f *fifo) push(rec monitor.Record) (droppedOne bool) {
	if len(f.items) >= f.capacity {
		f.items = f.items[1:]
		f.dropped++
		droppedOne = true
	}
	f.items = append(f.items, rec)
	return droppedOne
}

// drain removes and returns every buffered record.
func (f *fifo) drain() []monitor.Record {
	if len(f.items) == 0 {
		return nil
	}
	out := f.items
	f.items = nil
	return out
}
