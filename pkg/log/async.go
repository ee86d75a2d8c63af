package log

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

// asyncBufferSize is the number of log lines the diode can hold before it
// starts dropping the oldest ones.
const asyncBufferSize = 1000

// AsyncAdapter is a ZerologAdapter whose output passes through a diode
// ring buffer drained by a background goroutine.
type AsyncAdapter struct {
	*ZerologAdapter
	sink *switchSink
}

// NewAsyncAdapter creates an asynchronous console logger writing to out.
func NewAsyncAdapter(out io.Writer, level zerolog.Level) *AsyncAdapter {
	sink := &switchSink{out: out}
	sink.diode = diode.NewWriter(writerOnly{out}, asyncBufferSize, 10*time.Millisecond, func(missed int) {
		sink.missed.Add(int64(missed))
	})
	sink.current = sink.diode

	return &AsyncAdapter{
		ZerologAdapter: &ZerologAdapter{logger: newConsoleLogger(sink, level)},
		sink:           sink,
	}
}

// Detach drains the async buffer and switches every logger derived from
// this adapter to synchronous output. It is safe to call more than once.
func (a *AsyncAdapter) Detach() error {
	return a.sink.detach()
}

// Detached reports whether Detach has been called.
func (a *AsyncAdapter) Detached() bool {
	a.sink.mu.RLock()
	defer a.sink.mu.RUnlock()
	return a.sink.detached
}

// Missed returns how many lines the diode dropped under pressure.
func (a *AsyncAdapter) Missed() int64 {
	return a.sink.missed.Load()
}

// switchSink forwards writes to the diode until detached, then straight to out.
type switchSink struct {
	mu       sync.RWMutex
	out      io.Writer
	diode    diode.Writer
	current  io.Writer
	detached bool
	missed   atomic.Int64
}

func (s *switchSink) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Write(p)
}

func (s *switchSink) detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return nil
	}
	s.detached = true
	s.current = s.out
	return s.diode.Close()
}

// writerOnly hides io.Closer so closing the diode never closes stderr.
type writerOnly struct {
	w io.Writer
}

func (w writerOnly) Write(p []byte) (int, error) {
	return w.w.Write(p)
}
