package output

import (
	"fmt"
	"io"
	"sync"
)

// consoleSink serializes writes from every monitor type onto one writer and
// prints each monitor's header exactly once, the first time a row for that
// type is written.
type consoleSink struct {
	mu           sync.Mutex
	w            io.Writer
	headerShown  map[string]bool
}

func newConsoleSink(w io.Writer) *consoleSink {
	return &consoleSink{w: w, headerShown: make(map[string]bool)}
}

func (c *consoleSink) writeRow(monitorType, header, row string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.headerShown[monitorType] {
		fmt.Fprintln(c.w, header)
		c.headerShown[monitorType] = true
	}
	fmt.Fprintln(c.w, row)
}
