package client

import (
	"sync/atomic"
)

// requestCounter hands out sequential IDs used to correlate the debug log
// lines of a single operation.
type requestCounter struct {
	id atomic.Int64
}

func newRequestCounter() *requestCounter {
	return &requestCounter{}
}

// Next increments and returns the next ID. Safe for concurrent use.
func (m *requestCounter) Next() int64 {
	return m.id.Add(1)
}

// Current returns the last issued ID.
func (m *requestCounter) Current() int64 {
	return m.id.Load()
}
