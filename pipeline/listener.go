package pipeline

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// ProfilingListener is a FilterListener that counts completed Process runs
// and accumulates the wall time spent inside them.
//
// Wall time is used instead of CPU time: the multi-threaded nature of the
// pipeline would make per-stage CPU time meaningless.
type ProfilingListener struct {
	clk clock.Clock

	mu        sync.Mutex
	counter   uint32
	wallTime  time.Duration
	lastStart time.Time
}

// NewProfilingListener returns a profiling listener measuring against the
// wall clock.
func NewProfilingListener() *ProfilingListener {
	return NewProfilingListenerWithClock(clock.WallClock)
}

// NewProfilingListenerWithClock returns a profiling listener measuring
// against clk. Tests can pass a fake clock to make timings deterministic.
func NewProfilingListenerWithClock(clk clock.Clock) *ProfilingListener {
	if clk == nil {
		clk = clock.WallClock
	}
	return &ProfilingListener{clk: clk}
}

// Counter returns the number of completed runs of the observed filter since
// the listener was attached or metrics were last reset.
func (l *ProfilingListener) Counter() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counter
}

// WallTime returns the wall time spent in the observed filter's Process
// since the listener was attached or metrics were last reset.
func (l *ProfilingListener) WallTime() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wallTime
}

// ResetMetrics clears all collected metrics.
func (l *ProfilingListener) ResetMetrics() {
	l.mu.Lock()
	l.counter = 0
	l.wallTime = 0
	l.mu.Unlock()
}

// PreProcess implements FilterListener.
func (l *ProfilingListener) PreProcess(any) {
	l.mu.Lock()
	l.lastStart = l.clk.Now()
	l.mu.Unlock()
}

// PostProcess implements FilterListener.
func (l *ProfilingListener) PostProcess(any) {
	l.mu.Lock()
	l.wallTime += l.clk.Now().Sub(l.lastStart)
	l.counter++
	l.mu.Unlock()
}

// InterceptingListener extends ProfilingListener with hooks over the
// observed filter's outputs: a one-shot hook on the next output and access
// to a copy of the most recent one.
type InterceptingListener struct {
	ProfilingListener

	outMu    sync.Mutex
	lastOut  any
	doOnNext func(out any)
}

// NewInterceptingListener returns an intercepting listener measuring
// against the wall clock.
func NewInterceptingListener() *InterceptingListener {
	l := &InterceptingListener{}
	l.clk = clock.WallClock
	return l
}

// DoOnLastOut invokes fn with the most recently observed output, or nil if
// the filter has not produced one yet.
func (l *InterceptingListener) DoOnLastOut(fn func(out any)) {
	l.outMu.Lock()
	defer l.outMu.Unlock()
	fn(l.lastOut)
}

// DoOnNextOut registers fn to be invoked exactly once, with the next output
// the filter produces.
func (l *InterceptingListener) DoOnNextOut(fn func(out any)) {
	l.outMu.Lock()
	l.doOnNext = fn
	l.outMu.Unlock()
}

// PostProcess implements FilterListener.
func (l *InterceptingListener) PostProcess(out any) {
	l.ProfilingListener.PostProcess(out)

	l.outMu.Lock()
	defer l.outMu.Unlock()
	if l.doOnNext != nil {
		l.doOnNext(out)
		l.doOnNext = nil
	}
	l.lastOut = out
}
